package fusion

import (
	"anchorid/internal/embedding"
)

// CrossCheckMode records which document policy produced a score. Exposed on
// results so callers can assert on the path that executed instead of
// guessing from score shapes.
type CrossCheckMode string

const (
	// CrossCheckLive compares a freshly uploaded document against the
	// enrolled one: text against stored text, document face subspace against
	// the live face.
	CrossCheckLive CrossCheckMode = "live_document"

	// CrossCheckStored runs when no live document was submitted: the stored
	// document's face subspace is compared against the live face, and the
	// registration-time text is trusted as already validated (text score
	// fixed at 1.0).
	CrossCheckStored CrossCheckMode = "stored_document"
)

// DocumentCheck is the outcome of the document cross-check.
type DocumentCheck struct {
	Mode      CrossCheckMode
	TextScore float64
	FaceScore float64
	// Score is the 50/50 combination of TextScore and FaceScore.
	Score float64
}

// LiveDocument carries the evidence extracted from a freshly uploaded
// document at verification time.
type LiveDocument struct {
	Embedding embedding.Vector
	Text      string
}

// CrossCheckLiveDocument scores a live document against the enrolled record.
// The document embedding's face subspace is its first FaceDim components.
func CrossCheckLiveDocument(live LiveDocument, storedText string, liveFace embedding.Vector) DocumentCheck {
	textScore := TextSimilarity(live.Text, storedText)

	faceScore := 0.0
	if len(live.Embedding) > 0 {
		docFace := live.Embedding
		if len(docFace) > embedding.FaceDim {
			docFace = docFace[:embedding.FaceDim]
		}
		faceScore = Clamp01(CosineSimilarity(liveFace, docFace))
	}

	return DocumentCheck{
		Mode:      CrossCheckLive,
		TextScore: textScore,
		FaceScore: faceScore,
		Score:     0.5*textScore + 0.5*faceScore,
	}
}

// CrossCheckStoredDocument scores the enrolled document against the live
// face when no live document was submitted. Both operands are brought to
// FaceDim components, zero-padded on the right when shorter.
func CrossCheckStoredDocument(storedDoc, liveFace embedding.Vector) DocumentCheck {
	faceScore := Clamp01(CosineSimilarity(liveFace.FaceSubspace(), storedDoc.FaceSubspace()))

	// Registration-time document text is trusted as already validated.
	const textScore = 1.0

	return DocumentCheck{
		Mode:      CrossCheckStored,
		TextScore: textScore,
		FaceScore: faceScore,
		Score:     0.5*textScore + 0.5*faceScore,
	}
}
