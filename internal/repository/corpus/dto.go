package corpus

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Hash field names. The embedding is stored as little-endian float32 bytes,
// the layout FT.SEARCH expects for vector fields.
const (
	fieldDocumentID = "document_id"
	fieldFileName   = "file_name"
	fieldChunkIndex = "chunk_index"
	fieldTextChunk  = "text_chunk"
	fieldEmbedding  = "embedding"
	fieldSource     = "source"
	fieldUploadedAt = "uploaded_at"
	fieldChunkType  = "chunk_type"

	fieldUserID           = "user_id"
	fieldGeneratedAt      = "generated_at"
	fieldTotalIncome      = "total_income"
	fieldTotalExpenses    = "total_expenses"
	fieldNetIncome        = "net_income"
	fieldTransactionCount = "transaction_count"
	fieldPeriodStart      = "period_start"
	fieldPeriodEnd        = "period_end"
)

// fieldScore is the distance alias RediSearch derives from the embedding
// vector field. It must be in the RETURN list or hits come back scoreless.
const fieldScore = "__embedding_score"

// buildDocumentFields converts a domain Document into a flat map[string]string for HSET.
func buildDocumentFields(d *domain.Document) map[string]string {
	return map[string]string{
		fieldFileName:   d.FileName,
		"content":       d.Content,
		fieldSource:     d.Source,
		fieldUploadedAt: strconv.FormatInt(d.UploadedAt.Unix(), 10),
	}
}

// buildChunkFields converts a domain Chunk into a flat map[string]string for HSET.
func buildChunkFields(c *domain.Chunk) map[string]string {
	m := map[string]string{
		fieldDocumentID: c.DocumentID,
		fieldFileName:   c.FileName,
		fieldChunkIndex: strconv.Itoa(c.Index),
		fieldTextChunk:  c.Text,
		fieldEmbedding:  vectorToBytes(c.Embedding),
		fieldSource:     c.Source,
		fieldUploadedAt: strconv.FormatInt(c.UploadedAt.Unix(), 10),
	}

	if c.PnL != nil {
		m[fieldChunkType] = domain.ChunkTypePnLReport
		m[fieldUserID] = c.PnL.UserID
		m[fieldGeneratedAt] = strconv.FormatInt(c.PnL.GeneratedAt.Unix(), 10)
		m[fieldTotalIncome] = formatAmount(c.PnL.TotalIncome)
		m[fieldTotalExpenses] = formatAmount(c.PnL.TotalExpenses)
		m[fieldNetIncome] = formatAmount(c.PnL.NetIncome)
		m[fieldTransactionCount] = strconv.Itoa(c.PnL.TransactionCount)
		m[fieldPeriodStart] = strconv.FormatInt(c.PnL.PeriodStart.Unix(), 10)
		m[fieldPeriodEnd] = strconv.FormatInt(c.PnL.PeriodEnd.Unix(), 10)
	}

	return m
}

// parseChunkFields converts a flat hash map back into a domain Chunk.
func parseChunkFields(m map[string]string) domain.Chunk {
	c := domain.Chunk{
		DocumentID: m[fieldDocumentID],
		FileName:   m[fieldFileName],
		Text:       m[fieldTextChunk],
		Embedding:  bytesToVector(m[fieldEmbedding]),
		Source:     m[fieldSource],
	}
	c.Index, _ = strconv.Atoi(m[fieldChunkIndex])
	c.UploadedAt = parseUnix(m[fieldUploadedAt])

	if m[fieldChunkType] == domain.ChunkTypePnLReport {
		c.PnL = parsePnLFields(m)
	}

	return c
}

func parsePnLFields(m map[string]string) *domain.PnLMetadata {
	p := &domain.PnLMetadata{
		UserID:      m[fieldUserID],
		GeneratedAt: parseUnix(m[fieldGeneratedAt]),
		PeriodStart: parseUnix(m[fieldPeriodStart]),
		PeriodEnd:   parseUnix(m[fieldPeriodEnd]),
	}
	p.TotalIncome, _ = strconv.ParseFloat(m[fieldTotalIncome], 64)
	p.TotalExpenses, _ = strconv.ParseFloat(m[fieldTotalExpenses], 64)
	p.NetIncome, _ = strconv.ParseFloat(m[fieldNetIncome], 64)
	p.TransactionCount, _ = strconv.Atoi(m[fieldTransactionCount])
	return p
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
