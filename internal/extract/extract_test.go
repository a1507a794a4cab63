package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/domain"
	"busmate/pkg/clovaocr"
)

func response(texts ...string) *clovaocr.Response {
	fields := make([]clovaocr.Field, 0, len(texts))
	for _, t := range texts {
		fields = append(fields, clovaocr.Field{InferText: t, InferConfidence: 0.9})
	}
	return &clovaocr.Response{Images: []clovaocr.Image{{InferResult: "SUCCESS", Fields: fields}}}
}

func TestBusNumberFirstMatchWins(t *testing.T) {
	got, err := BusNumber(response("서울역", "742", "광역버스"))
	require.NoError(t, err)
	assert.Equal(t, "742", got.Number)
	assert.Equal(t, domain.RouteTrunk, got.Category)
	assert.True(t, got.Valid)
}

func TestBusNumberScansFieldsInOrder(t *testing.T) {
	got, err := BusNumber(response("강남1", "742"))
	require.NoError(t, err)
	assert.Equal(t, "강남1", got.Number)
}

func TestBusNumberStripsEmbeddedSeparators(t *testing.T) {
	got, err := BusNumber(response("7 4 2"))
	require.NoError(t, err)
	assert.Equal(t, "742", got.Number)
}

func TestBusNumberNoMatch(t *testing.T) {
	_, err := BusNumber(response("정류장", "안내"))
	assert.ErrorIs(t, err, ErrNoBusNumber)
}

func TestBusNumberMalformedResponse(t *testing.T) {
	cases := []*clovaocr.Response{
		nil,
		{},
		{Images: []clovaocr.Image{{}}},
	}
	for _, resp := range cases {
		_, err := BusNumber(resp)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	}
}

func TestBusNumberWindowInvalidShapeStillExtracted(t *testing.T) {
	got, err := BusNumber(response("4000"))
	require.NoError(t, err)
	assert.Equal(t, "4000", got.Number)
	assert.False(t, got.Valid)
}
