// Package locpb encodes location-search queries and decodes their
// results in the protobuf wire format spoken by the Moovit location
// endpoint.
//
//	message LocationQuery    { double latitude = 1; double longitude = 2; string query = 3; }
//	message LocationResponse { repeated LocationResult results = 2; }
//	message LocationResult   { int32 type = 1; int64 id = 2; MetroInfo metro = 3;
//	                           string name = 4; string subtitle = 5; Coordinates coordinates = 6; }
//	message MetroInfo        { int32 metroId = 1; }
//	message Coordinates      { int32 latitude = 1; int32 longitude = 2; }
package locpb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dortort/moovit-client/geo"
)

type ResultType int32

const (
	ResultTypeAddress ResultType = 2
	ResultTypePOI     ResultType = 3
	ResultTypeStop    ResultType = 4
)

func (t ResultType) String() string {
	switch t {
	case ResultTypeAddress:
		return "address"
	case ResultTypeStop:
		return "stop"
	default:
		return "poi"
	}
}

type Query struct {
	Lat   float64
	Lon   float64
	Query string
}

type Result struct {
	Type        ResultType
	ID          int64
	MetroID     *int32
	Name        string
	Subtitle    *string
	Coordinates geo.Coordinates
}

// EncodeQuery serializes q as a LocationQuery message.
func EncodeQuery(q Query) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(q.Lat))
	b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(q.Lon))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, q.Query)
	return b
}

// DecodeQuery parses a LocationQuery message.
func DecodeQuery(b []byte) (Query, error) {
	q := Query{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			q.Lat = math.Float64frombits(v)
			return n, nil
		case num == 2 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			q.Lon = math.Float64frombits(v)
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			q.Query = v
			return n, nil
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return Query{}, fmt.Errorf("decoding location query: %w", err)
	}
	return q, nil
}

// DecodeResponse parses a LocationResponse message. Unknown result
// types are reported as POI. An empty buffer holds no results.
func DecodeResponse(b []byte) ([]Result, error) {
	results := []Result{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 2 || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		r, err := decodeResult(v)
		if err != nil {
			return 0, err
		}
		results = append(results, r)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding location response: %w", err)
	}
	return results, nil
}

// EncodeResponse serializes results as a LocationResponse message.
func EncodeResponse(results []Result) []byte {
	var b []byte
	for _, r := range results {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeResult(r))
	}
	return b
}

func encodeResult(r Result) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Type))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.ID))
	if r.MetroID != nil {
		var metro []byte
		metro = protowire.AppendTag(metro, 1, protowire.VarintType)
		metro = protowire.AppendVarint(metro, uint64(*r.MetroID))
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, metro)
	}
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, r.Name)
	if r.Subtitle != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, *r.Subtitle)
	}

	scaled := geo.ToScaledCoordinates(r.Coordinates)
	var coords []byte
	coords = protowire.AppendTag(coords, 1, protowire.VarintType)
	coords = protowire.AppendVarint(coords, uint64(int32(scaled.Lat)))
	coords = protowire.AppendTag(coords, 2, protowire.VarintType)
	coords = protowire.AppendVarint(coords, uint64(int32(scaled.Lon)))
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendBytes(b, coords)

	return b
}

func decodeResult(b []byte) (Result, error) {
	r := Result{}
	var lat, lon int32
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Type = ResultType(int32(v))
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.ID = int64(v)
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			metroID, err := decodeMetro(v)
			if err != nil {
				return 0, fmt.Errorf("metro: %w", err)
			}
			r.MetroID = metroID
			return n, nil
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Name = v
			return n, nil
		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Subtitle = &v
			return n, nil
		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var err error
			lat, lon, err = decodeCoordinates(v)
			if err != nil {
				return 0, fmt.Errorf("coordinates: %w", err)
			}
			return n, nil
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return Result{}, fmt.Errorf("result: %w", err)
	}

	switch r.Type {
	case ResultTypeAddress, ResultTypePOI, ResultTypeStop:
	default:
		r.Type = ResultTypePOI
	}
	r.Coordinates = geo.FromScaledCoordinates(geo.ScaledCoordinates{Lat: int64(lat), Lon: int64(lon)})

	return r, nil
}

func decodeMetro(b []byte) (*int32, error) {
	var metroID *int32
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			id := int32(v)
			metroID = &id
			return n, nil
		}
		return skip(num, typ, b)
	})
	return metroID, err
}

func decodeCoordinates(b []byte) (int32, int32, error) {
	var lat, lon int32
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			lat = int32(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			lon = int32(v)
			return n, nil
		}
		return skip(num, typ, b)
	})
	return lat, lon, err
}

// walk calls field for each field in b. field consumes the value
// following the tag and returns the number of bytes read, or a
// negative protowire error code.
func walk(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}
