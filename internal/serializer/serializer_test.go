package serializer

import (
	"testing"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

type order struct {
	ID    string `json:"id" yaml:"id"`
	Total int    `json:"total" yaml:"total"`
}

func TestFactory_DescribeDecode(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		name string
		rep  Representation
	}{
		{"json string", Representation{KindJSON, FormatString}},
		{"json binary", Representation{KindJSON, FormatBinary}},
		{"yaml string", Representation{KindYAML, FormatString}},
		{"yaml binary", Representation{KindYAML, FormatBinary}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := order{ID: "o-1", Total: 42}
			d, err := f.Describe(tt.rep, typerep.Type{}, in)
			if err != nil {
				t.Fatalf("Describe() error = %v", err)
			}
			if d.PayloadType.WithVersion.Name != "order" {
				t.Errorf("derived payload type = %+v, want name order", d.PayloadType.WithVersion)
			}
			if tt.rep.Format == FormatBinary && (len(d.Bytes) == 0 || d.String != "") {
				t.Errorf("binary format stored string=%q bytes=%d", d.String, len(d.Bytes))
			}
			if tt.rep.Format == FormatString && (d.String == "" || d.Bytes != nil) {
				t.Errorf("string format stored string=%q bytes=%d", d.String, len(d.Bytes))
			}

			var out order
			if err := f.Decode(d, &out); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if out != in {
				t.Errorf("Decode() = %+v, want %+v", out, in)
			}
		})
	}
}

func TestFactory_ExplicitPayloadType(t *testing.T) {
	f := NewFactory()
	pt := typerep.New("acme", "Order").Versioned("2")

	d, err := f.Describe(DefaultRepresentation, pt, order{ID: "x"})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if d.PayloadType.WithVersion != pt || d.PayloadType.WithoutVersion != pt.WithoutVersion() {
		t.Errorf("PayloadType = %+v", d.PayloadType)
	}
	if d.String != `{"id":"x","total":0}` {
		t.Errorf("String = %q", d.String)
	}
}

func TestFactory_UnknownKind(t *testing.T) {
	f := NewFactory()
	_, err := f.Describe(Representation{Kind: "protobuf", Format: FormatString}, typerep.Type{}, 1)
	if !errors.Is(err, errors.ErrUnsupportedValue) {
		t.Errorf("Describe() error = %v, want ErrUnsupportedValue", err)
	}
}

func TestDescribed_Equal(t *testing.T) {
	f := NewFactory()
	a, _ := f.Describe(DefaultRepresentation, typerep.Type{}, order{ID: "a"})
	b, _ := f.Describe(DefaultRepresentation, typerep.Type{}, order{ID: "a"})
	c, _ := f.Describe(DefaultRepresentation, typerep.Type{}, order{ID: "c"})
	y, _ := f.Describe(Representation{KindYAML, FormatString}, typerep.Type{}, order{ID: "a"})

	if !a.Equal(b) {
		t.Error("identical payloads should be equal")
	}
	if a.Equal(c) {
		t.Error("different payloads should not be equal")
	}
	if a.Equal(y) {
		t.Error("different serializers should not be equal")
	}
}

func TestParseRepresentation(t *testing.T) {
	tests := []struct {
		kind, format string
		want         Representation
		wantErr      bool
	}{
		{"JSON", "String", Representation{KindJSON, FormatString}, false},
		{"yaml", "binary", Representation{KindYAML, FormatBinary}, false},
		{"xml", "string", Representation{}, true},
		{"json", "hex", Representation{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.format, func(t *testing.T) {
			got, err := ParseRepresentation(tt.kind, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
