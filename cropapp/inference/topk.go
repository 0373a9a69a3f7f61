package inference

import (
	"fmt"
	"sort"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
)

// Prediction 추론 항목
type Prediction struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Result 추론 결과
type Result struct {
	TopK             int          `json:"top_k"`
	Predictions      []Prediction `json:"predictions"`
	RawProbabilities []float32    `json:"raw_probabilities"`
}

type sortByProb []Prediction

func (s sortByProb) Len() int {
	return len(s)
}

func (s sortByProb) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s sortByProb) Less(i, j int) bool {
	return s[i].Confidence > s[j].Confidence
}

// TopK 확률이 높은 순서로 k개의 추론 항목 반환
//
// 확률이 같으면 인덱스 오름차순을 유지한다.
func TopK(probs []float32, labels Labels, k int) ([]Prediction, error) {
	if len(probs) != len(labels) {
		return nil, fmt.Errorf(
			"The number of correct(%d) and predicted(%d) labels does not match",
			len(labels),
			len(probs),
		)
	}

	infers := make([]Prediction, len(probs))
	for idx, prob := range probs {
		infers[idx] = Prediction{
			Index:      idx,
			Label:      labels[idx],
			Confidence: prob,
		}
	}
	sort.Stable(sortByProb(infers))

	if k <= 0 {
		k = constants.TopK
	}

	if k > len(infers) {
		k = len(infers)
	}

	return infers[:k], nil
}
