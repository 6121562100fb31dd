package omitnilpointers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOmitNilPointers(t *testing.T) {
	title := "lecture"
	var scheduled *int64

	fields := map[string]any{
		"name":               "room",
		"video_title":        &title,
		"scheduled_start_at": scheduled,
		"nothing":            nil,
	}

	omitted := OmitNilPointers(fields)
	assert.Equal(t, map[string]any{
		"name":        "room",
		"video_title": "lecture",
	}, omitted)
}

func TestOmitNilPointersOtherPointerKinds(t *testing.T) {
	count := 3
	var missing *int

	omitted := OmitNilPointers(map[string]any{
		"count":   &count,
		"missing": missing,
		"plain":   7,
	})
	assert.Equal(t, map[string]any{
		"count": 3,
		"plain": 7,
	}, omitted)
}
