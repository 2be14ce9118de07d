package embedding_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/embedding"
)

func TestCheckInput(t *testing.T) {
	gt.NoError(t, embedding.CheckInput("rust ownership", 0))

	err := embedding.CheckInput("  \n\t", 0)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, domain.ErrTagEmbedding))

	err = embedding.CheckInput("too long for the limit", 5)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, domain.ErrTagEmbedding))
}

func TestCheckDimension(t *testing.T) {
	gt.NoError(t, embedding.CheckDimension(make([]float32, 4), 4))
	err := embedding.CheckDimension(make([]float32, 3), 4)
	gt.True(t, goerr.HasTag(err, domain.ErrTagEmbedding))
}

func TestNormalize(t *testing.T) {
	v := embedding.Normalize([]float32{3, 4})
	gt.True(t, math.Abs(float64(v[0])-0.6) < 1e-6)
	gt.True(t, math.Abs(float64(v[1])-0.8) < 1e-6)

	zero := embedding.Normalize([]float32{0, 0})
	gt.Equal(t, zero, []float32{0, 0})
}
