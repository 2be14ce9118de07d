package vectorstore_test

import (
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/vectorstore"
)

func TestCheckReset(t *testing.T) {
	gt.NoError(t, vectorstore.CheckReset(3, domain.MetricCosine))
	gt.True(t, goerr.HasTag(vectorstore.CheckReset(0, domain.MetricCosine), domain.ErrTagStore))
	gt.True(t, goerr.HasTag(vectorstore.CheckReset(3, "Dot"), domain.ErrTagStore))
}

func TestCheckRecord(t *testing.T) {
	rec := domain.MemoryRecord{URL: "u", Text: "t", Vector: []float32{1, 0, 0}}
	gt.NoError(t, vectorstore.CheckRecord(rec, 3))
	gt.Error(t, vectorstore.CheckRecord(rec, 0))
	gt.Error(t, vectorstore.CheckRecord(rec, 4))
	gt.Error(t, vectorstore.CheckRecord(domain.MemoryRecord{Vector: []float32{1, 0, 0}}, 3))
}

func TestCheckQuery(t *testing.T) {
	gt.NoError(t, vectorstore.CheckQuery([]float32{1, 0, 0}, 3))
	gt.True(t, goerr.HasTag(vectorstore.CheckQuery(nil, 0), domain.ErrTagStore))
	gt.True(t, goerr.HasTag(vectorstore.CheckQuery([]float32{1}, 3), domain.ErrTagStore))
}

func TestCosine(t *testing.T) {
	gt.Equal(t, vectorstore.Cosine([]float32{1, 0}, []float32{2, 0}), 1.0)
	gt.Equal(t, vectorstore.Cosine([]float32{1, 0}, []float32{0, 3}), 0.0)
	gt.Equal(t, vectorstore.Cosine([]float32{1, 0}, []float32{-1, 0}), -1.0)
	gt.Equal(t, vectorstore.Cosine([]float32{0, 0}, []float32{1, 0}), 0.0)
}
