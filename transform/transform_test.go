package transform

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
)

var testRun = RunContext{StartedAt: time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)}

func TestApplyColumnKinds(t *testing.T) {
	s, err := schema.New("mixed",
		schema.Column("name"),
		schema.Prefixed("trip_id"),
		schema.Fixed("agency_id", "CM"),
		schema.Derived("feed_version", schema.RuleFeedVersionTimestamp),
		schema.Checked("route_color", schema.RuleColorLength),
	)
	if err != nil {
		t.Fatal(err)
	}
	raw := Row{"name": "Linha 1", "trip_id": "T9", "agency_id": "OTHER", "feed_version": "old", "route_color": "FFCC00"}

	got, err := Transform(raw, s, "p3_", testRun, 1)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := []string{"Linha 1", "p3_T9", "CM", "20240307090501", "FFCC00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestApplyAbsentColumns(t *testing.T) {
	s := schema.MustParse("stops", "stop_id", "*zone", "stop_desc")
	got, err := Transform(Row{"stop_id": "010001"}, s, "p0_", testRun, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"010001", "", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNamespacedEmptyValueKeepsPrefix(t *testing.T) {
	s := schema.MustParse("shapes", "*shape_id", "shape_pt_lat")
	tests := []struct {
		name string
		raw  Row
		want string
	}{
		{"absent column", Row{"shape_pt_lat": "38.7"}, ""},
		{"present but empty", Row{"shape_id": "", "shape_pt_lat": "38.7"}, "p0_"},
		{"present", Row{"shape_id": "S1", "shape_pt_lat": "38.7"}, "p0_S1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transform(tt.raw, s, "p0_", testRun, 1)
			if err != nil {
				t.Fatal(err)
			}
			if got[0] != tt.want {
				t.Errorf("shape_id = %q, want %q", got[0], tt.want)
			}
		})
	}
}

func TestOutputWidthMatchesSchema(t *testing.T) {
	reg := schema.NewRegistry(schema.Options{})
	raw := Row{"route_color": "000000", "route_text_color": "FFFFFF"}
	for _, s := range reg.Tables() {
		p, err := Compile(s)
		if err != nil {
			t.Fatalf("Compile(%s): %v", s.Name, err)
		}
		out, err := p.Apply(raw, "p0_", testRun, 1)
		if err != nil {
			t.Fatalf("Apply(%s): %v", s.Name, err)
		}
		if len(out) != s.Width() || p.Width() != s.Width() {
			t.Errorf("%s: width %d, want %d", s.Name, len(out), s.Width())
		}
	}
}

func TestNamespacesKeepValuesApart(t *testing.T) {
	s := schema.MustParse("trips", "*trip_id")
	for _, v := range []string{"", "1", "trip-42", "p1_"} {
		a, _ := Transform(Row{"trip_id": v}, s, "p0_", testRun, 1)
		b, _ := Transform(Row{"trip_id": v}, s, "p1_", testRun, 1)
		if a[0] == b[0] {
			t.Errorf("value %q: namespaces collide (%q)", v, a[0])
		}
		if !strings.HasPrefix(a[0], "p0_") || !strings.HasPrefix(b[0], "p1_") {
			t.Errorf("value %q: missing prefix in %q / %q", v, a[0], b[0])
		}
	}
}

func TestConstantIgnoresInput(t *testing.T) {
	s, _ := schema.New("agency", schema.Fixed("agency_id", "CM"), schema.Column("agency_name"))
	rows := []Row{
		{},
		{"agency_name": "Carris"},
		{"agency_id": "41", "agency_name": "Carris"},
	}
	for _, r := range rows {
		out, err := Transform(r, s, "p2_", testRun, 1)
		if err != nil {
			t.Fatal(err)
		}
		if out[0] != "CM" {
			t.Errorf("row %v: agency_id = %q", r, out[0])
		}
	}
}

func TestValidatedLength(t *testing.T) {
	s, _ := schema.New("routes", schema.Column("route_id"), schema.Checked("route_color", schema.RuleColorLength))
	p, err := Compile(s)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value string
		ok    bool
	}{
		{"FFFFFF", true},
		{"00a1b2", true},
		{"zzzzzz", true},
		{"", false},
		{"12345", false},
		{"1234567", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			out, err := p.Apply(Row{"route_id": "1", "route_color": tt.value}, "", testRun, 7)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if out[1] != tt.value {
					t.Errorf("value rewritten: %q", out[1])
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want *ValidationError, got %v", err)
			}
			if ve.Table != "routes" || ve.Column != "route_color" || ve.Value != tt.value || ve.Row != 7 {
				t.Errorf("unexpected error detail: %+v", ve)
			}
		})
	}
}

func TestRouteShortNameRule(t *testing.T) {
	s := schema.NewRegistry(schema.Options{RouteShortNameCheck: true}).MustLookup(schema.Routes)
	base := Row{"route_color": "000000", "route_text_color": "FFFFFF"}

	base["route_short_name"] = "1234"
	if _, err := Transform(base, s, "", testRun, 1); err != nil {
		t.Errorf("1234 rejected: %v", err)
	}
	base["route_short_name"] = "12A4"
	if _, err := Transform(base, s, "", testRun, 1); err == nil {
		t.Error("12A4 accepted")
	}
}

func TestCompileRejectsUnknownRules(t *testing.T) {
	tests := []struct {
		name string
		col  schema.ColumnSpec
	}{
		{"computed", schema.Derived("x", "no_such_rule")},
		{"empty tag", schema.Checked("x", "")},
		{"unknown tag", schema.Checked("x", "definitely_not_a_tag")},
		{"kind", schema.ColumnSpec{Name: "x", Kind: schema.Kind(99)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := schema.New("t", tt.col)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := Compile(s); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Table: "routes", Column: "route_color", Value: "12345", Row: 1, Rule: "len=6"}
	want := `routes row 1: column "route_color" value "12345" fails len=6`
	if err.Error() != want {
		t.Errorf("Error() = %q", err.Error())
	}
}
