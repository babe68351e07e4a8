package rag

import (
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// RawMatch is a search hit as returned by a backend, before normalisation.
// It is a closed sum type: PointMatch or MapMatch.
type RawMatch interface {
	isRawMatch()
}

// PointMatch wraps a structured Qdrant scored point whose payload values
// are typed protobuf values.
type PointMatch struct {
	Point *qdrant.ScoredPoint
}

// MapMatch is a hit delivered as a plain string mapping, as chromem-go
// returns it.
type MapMatch struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

func (PointMatch) isRawMatch() {}
func (MapMatch) isRawMatch()   {}

// Normalize converts any RawMatch into the canonical Match.
func Normalize(raw RawMatch) Match {
	switch m := raw.(type) {
	case PointMatch:
		return normalizePoint(m.Point)
	case MapMatch:
		meta := make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			meta[k] = v
		}
		id := m.ID
		if rid, ok := meta[payloadRecordID]; ok && rid != "" {
			id = rid
			delete(meta, payloadRecordID)
		}
		return Match{ID: id, Score: m.Score, Metadata: meta}
	default:
		return Match{}
	}
}

// NormalizeAll converts a backend result list, preserving order.
func NormalizeAll[T RawMatch](raw []T) []Match {
	out := make([]Match, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r))
	}
	return out
}

func normalizePoint(p *qdrant.ScoredPoint) Match {
	if p == nil {
		return Match{}
	}

	m := Match{Score: p.GetScore(), Metadata: make(map[string]string, len(p.GetPayload()))}
	for k, v := range p.GetPayload() {
		if k == payloadRecordID {
			m.ID = v.GetStringValue()
			continue
		}
		m.Metadata[k] = valueString(v)
	}

	if m.ID == "" {
		id := p.GetId()
		if u := id.GetUuid(); u != "" {
			m.ID = u
		} else {
			m.ID = strconv.FormatUint(id.GetNum(), 10)
		}
	}
	return m
}

// valueString flattens a scalar payload value. Nested values are not
// written by this package and come back empty.
func valueString(v *qdrant.Value) string {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}
