package inference

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
)

// Labels 학습 시의 클래스 인덱스 순서와 동일한 레이블 목록
type Labels []string

// LoadLabels label_map.json 로드
func LoadLabels(path string) (Labels, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Fail to read labels: %s: %w", path, err)
	}

	labels, err := ParseLabels(b)
	if err != nil {
		return nil, fmt.Errorf("Fail to parse labels: %s: %w", path, err)
	}

	return labels, nil
}

// ParseLabels JSON 배열 또는 {"0": "name", ...} 형태의 레이블 파싱
func ParseLabels(b []byte) (Labels, error) {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		if len(list) == 0 {
			return nil, errors.New("Empty label table")
		}
		return Labels(list), nil
	}

	var byIndex map[string]string
	if err := json.Unmarshal(b, &byIndex); err != nil {
		return nil, errors.New("Label table must be a JSON array of names or an index-to-name object")
	}
	if len(byIndex) == 0 {
		return nil, errors.New("Empty label table")
	}

	labels := make(Labels, len(byIndex))
	seen := make([]bool, len(byIndex))
	for key, name := range byIndex {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("Invalid label index %q (expected 0..%d)", key, len(labels)-1)
		}
		if seen[idx] {
			return nil, fmt.Errorf("Duplicated label index %d", idx)
		}
		seen[idx] = true
		labels[idx] = name
	}

	return labels, nil
}

// Head 앞쪽 n개 레이블 반환
func (l Labels) Head(n int) []string {
	if n > len(l) {
		n = len(l)
	}

	head := make([]string, n)
	copy(head, l[:n])

	return head
}
