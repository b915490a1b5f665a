package locpb_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dortort/moovit-client/geo"
	"github.com/dortort/moovit-client/locpb"
)

type testResult struct {
	typ      int32
	id       int64
	metroID  *int32
	name     string
	subtitle *string
	lat, lon int32
	extra    bool
}

func encodeResponse(results ...testResult) []byte {
	var b []byte
	// Unknown top level field, should be skipped
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 17)

	for _, r := range results {
		var m []byte
		m = protowire.AppendTag(m, 1, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(r.typ))
		m = protowire.AppendTag(m, 2, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(r.id))
		if r.metroID != nil {
			var metro []byte
			metro = protowire.AppendTag(metro, 1, protowire.VarintType)
			metro = protowire.AppendVarint(metro, uint64(*r.metroID))
			m = protowire.AppendTag(m, 3, protowire.BytesType)
			m = protowire.AppendBytes(m, metro)
		}
		m = protowire.AppendTag(m, 4, protowire.BytesType)
		m = protowire.AppendString(m, r.name)
		if r.subtitle != nil {
			m = protowire.AppendTag(m, 5, protowire.BytesType)
			m = protowire.AppendString(m, *r.subtitle)
		}
		var coords []byte
		coords = protowire.AppendTag(coords, 1, protowire.VarintType)
		coords = protowire.AppendVarint(coords, uint64(int64(r.lat)))
		coords = protowire.AppendTag(coords, 2, protowire.VarintType)
		coords = protowire.AppendVarint(coords, uint64(int64(r.lon)))
		m = protowire.AppendTag(m, 6, protowire.BytesType)
		m = protowire.AppendBytes(m, coords)
		if r.extra {
			m = protowire.AppendTag(m, 15, protowire.Fixed32Type)
			m = protowire.AppendFixed32(m, 99)
		}

		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b
}

func int32p(v int32) *int32    { return &v }
func stringp(v string) *string { return &v }

func TestEncodeQuery(t *testing.T) {
	b := locpb.EncodeQuery(locpb.Query{Lat: 32.0853, Lon: 34.7818, Query: "Dizengoff"})

	num, typ, n := protowire.ConsumeTag(b)
	require.True(t, n > 0)
	assert.Equal(t, protowire.Number(1), num)
	assert.Equal(t, protowire.Fixed64Type, typ)
	v, m := protowire.ConsumeFixed64(b[n:])
	require.True(t, m > 0)
	assert.Equal(t, 32.0853, math.Float64frombits(v))

	q, err := locpb.DecodeQuery(b)
	require.NoError(t, err)
	assert.Equal(t, locpb.Query{Lat: 32.0853, Lon: 34.7818, Query: "Dizengoff"}, q)

	// Non-ASCII text survives
	q, err = locpb.DecodeQuery(locpb.EncodeQuery(locpb.Query{Lat: -1, Lon: 0, Query: "תחנה מרכזית"}))
	require.NoError(t, err)
	assert.Equal(t, "תחנה מרכזית", q.Query)
	assert.Equal(t, -1.0, q.Lat)
}

func TestDecodeResponse(t *testing.T) {
	b := encodeResponse(
		testResult{typ: 4, id: 123456789012, metroID: int32p(1), name: "Arlozorov Terminal", subtitle: stringp("Tel Aviv"), lat: 32085300, lon: 34781800, extra: true},
		testResult{typ: 2, id: 7, name: "Herzl 1", lat: -33868800, lon: 151209300},
		testResult{typ: 9, id: 8, name: "Mystery", lat: 1, lon: -1},
	)

	results, err := locpb.DecodeResponse(b)
	require.NoError(t, err)
	require.Equal(t, 3, len(results))

	assert.Equal(t, locpb.Result{
		Type:        locpb.ResultTypeStop,
		ID:          123456789012,
		MetroID:     int32p(1),
		Name:        "Arlozorov Terminal",
		Subtitle:    stringp("Tel Aviv"),
		Coordinates: geo.Coordinates{Lat: 32.0853, Lon: 34.7818},
	}, results[0])

	assert.Equal(t, locpb.ResultTypeAddress, results[1].Type)
	assert.Nil(t, results[1].MetroID)
	assert.Nil(t, results[1].Subtitle)
	assert.Equal(t, geo.Coordinates{Lat: -33.8688, Lon: 151.2093}, results[1].Coordinates)

	// Unknown type code maps to POI
	assert.Equal(t, locpb.ResultTypePOI, results[2].Type)
	assert.Equal(t, "poi", results[2].Type.String())
	assert.Equal(t, -0.000001, results[2].Coordinates.Lon)
}

func TestDecodeResponseEmpty(t *testing.T) {
	results, err := locpb.DecodeResponse(nil)
	require.NoError(t, err)
	assert.Equal(t, []locpb.Result{}, results)

	results, err = locpb.DecodeResponse([]byte{})
	require.NoError(t, err)
	assert.Equal(t, 0, len(results))
}

func TestDecodeResponseMalformed(t *testing.T) {
	b := encodeResponse(testResult{typ: 4, id: 1, name: "Truncated", lat: 1, lon: 1})

	_, err := locpb.DecodeResponse(b[:len(b)-3])
	assert.Error(t, err)

	_, err = locpb.DecodeResponse([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)

	// Length prefix pointing past the end of the buffer
	_, err = locpb.DecodeResponse([]byte{0x12, 0x40, 0x08})
	assert.Error(t, err)
}

func TestEncodeResponseRoundTrip(t *testing.T) {
	metro := int32(1)
	subtitle := "Tel Aviv-Yafo"
	in := []locpb.Result{
		{
			Type:        locpb.ResultTypeStop,
			ID:          12345,
			MetroID:     &metro,
			Name:        "Arlozorov Terminal",
			Subtitle:    &subtitle,
			Coordinates: geo.Coordinates{Lat: 32.083, Lon: 34.7925},
		},
		{
			Type:        locpb.ResultTypeAddress,
			ID:          7,
			Name:        "Somewhere west",
			Coordinates: geo.Coordinates{Lat: -33.8688, Lon: -151.2093},
		},
	}

	out, err := locpb.DecodeResponse(locpb.EncodeResponse(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = locpb.DecodeResponse(locpb.EncodeResponse(nil))
	require.NoError(t, err)
	assert.Equal(t, []locpb.Result{}, out)
}
