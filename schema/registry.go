package schema

import "fmt"

// DefaultAgencyID is injected into every agency_id column of the merged feed.
const DefaultAgencyID = "CM"

// Table names.
const (
	Agency         = "agency"
	CalendarDates  = "calendar_dates"
	FareAttributes = "fare_attributes"
	FareRules      = "fare_rules"
	FeedInfo       = "feed_info"
	Municipalities = "municipalities"
	Routes         = "routes"
	Shapes         = "shapes"
	StopTimes      = "stop_times"
	Stops          = "stops"
	Trips          = "trips"
)

// CommonTables are imported once, without a namespace, from the shared files.
var CommonTables = []string{Agency, FareAttributes, FareRules, FeedInfo, Municipalities, Stops}

// SourceTables are imported from every source feed under its namespace.
var SourceTables = []string{CalendarDates, Routes, Shapes, StopTimes, Trips}

// Options tune the reference registry.
type Options struct {
	// AgencyID replaces every agency_id cell. Empty means DefaultAgencyID.
	AgencyID string
	// RouteShortNameCheck turns on the numeric four-digit route_short_name
	// check. Off by default; most feeds carry letters in short names.
	RouteShortNameCheck bool
}

// Registry resolves table names to schemas. It is immutable after construction.
type Registry struct {
	order  []string
	tables map[string]TableSchema
}

// NewRegistry returns the reference table set.
func NewRegistry(opts Options) *Registry {
	agencyID := opts.AgencyID
	if agencyID == "" {
		agencyID = DefaultAgencyID
	}
	shortName := Column("route_short_name")
	if opts.RouteShortNameCheck {
		shortName = Checked("route_short_name", RuleRouteShortName)
	}

	r := &Registry{tables: map[string]TableSchema{}}
	r.add(Agency,
		Fixed("agency_id", agencyID),
		Column("agency_name"),
		Column("agency_url"),
		Column("agency_timezone"),
		Column("agency_lang"),
		Column("agency_phone"),
		Column("agency_fare_url"),
		Column("agency_email"),
	)
	r.add(CalendarDates,
		Prefixed("service_id"),
		Column("date"),
		Column("holiday"),
		Column("period"),
		Column("day_type"),
		Column("exception_type"),
	)
	r.add(FareAttributes,
		Column("fare_id"),
		Column("fare_short_name"),
		Column("fare_long_name"),
		Column("price"),
		Column("currency_type"),
		Column("payment_method"),
		Column("transfers"),
		Fixed("agency_id", agencyID),
	)
	r.add(FareRules,
		Column("fare_id"),
		Column("route_id"),
	)
	r.add(FeedInfo,
		Column("feed_publisher_name"),
		Column("feed_publisher_url"),
		Column("feed_lang"),
		Column("default_lang"),
		Column("feed_contact_url"),
		Derived("feed_version", RuleFeedVersionTimestamp),
	)
	r.add(Municipalities,
		Column("municipality_prefix"),
		Column("municipality_id"),
		Column("municipality_name"),
		Column("district_id"),
		Column("district_name"),
		Column("region_id"),
		Column("region_name"),
	)
	r.add(Routes,
		Column("route_id"),
		Fixed("agency_id", agencyID),
		shortName,
		Column("route_long_name"),
		Column("route_type"),
		Checked("route_color", RuleColorLength),
		Checked("route_text_color", RuleColorLength),
	)
	r.add(Shapes,
		Prefixed("shape_id"),
		Column("shape_pt_lat"),
		Column("shape_pt_lon"),
		Column("shape_pt_sequence"),
		Column("shape_dist_traveled"),
	)
	r.add(StopTimes,
		Prefixed("trip_id"),
		Column("arrival_time"),
		Column("departure_time"),
		Column("stop_id"),
		Column("stop_sequence"),
		Column("shape_dist_traveled"),
	)
	r.add(Stops,
		Column("stop_id"),
		Column("stop_code"),
		Column("stop_name"),
		Column("stop_lat"),
		Column("stop_lon"),
		Column("municipality_id"),
	)
	r.add(Trips,
		Column("route_id"),
		Prefixed("service_id"),
		Prefixed("trip_id"),
		Column("trip_headsign"),
		Column("direction_id"),
		Prefixed("shape_id"),
	)
	return r
}

// Basic returns the plain table set: passthrough and namespaced columns only,
// no municipalities table.
func Basic() *Registry {
	r := &Registry{tables: map[string]TableSchema{}}
	r.put(MustParse(Agency, "agency_name", "agency_url", "agency_timezone", "agency_lang", "agency_phone"))
	r.put(MustParse(CalendarDates, "*service_id", "date", "holiday", "period", "day_type", "exception_type"))
	r.put(MustParse(FareAttributes, "fare_id", "fare_short_name", "fare_long_name", "price", "currency_type", "payment_method", "transfers"))
	r.put(MustParse(FareRules, "fare_id", "route_id"))
	r.put(MustParse(FeedInfo, "feed_publisher_name", "feed_publisher_url", "feed_lang", "default_lang", "feed_contact_url", "feed_version"))
	r.put(MustParse(Routes, "route_id", "route_short_name", "route_long_name", "route_type", "route_color", "route_text_color"))
	r.put(MustParse(Shapes, "*shape_id", "shape_pt_lat", "shape_pt_lon", "shape_pt_sequence", "shape_dist_traveled"))
	r.put(MustParse(StopTimes, "*trip_id", "arrival_time", "departure_time", "stop_id", "stop_sequence", "shape_dist_traveled"))
	r.put(MustParse(Stops, "stop_id", "stop_code", "stop_name", "stop_lat", "stop_lon"))
	r.put(MustParse(Trips, "route_id", "*service_id", "*trip_id", "trip_headsign", "direction_id", "*shape_id"))
	return r
}

// NewCustom builds a registry from explicit schemas, in the given order.
func NewCustom(tables ...TableSchema) (*Registry, error) {
	r := &Registry{tables: map[string]TableSchema{}}
	for _, t := range tables {
		if _, dup := r.tables[t.Name]; dup {
			return nil, fmt.Errorf("schema: table %q declared twice", t.Name)
		}
		r.put(t)
	}
	return r, nil
}

func (r *Registry) add(name string, cols ...ColumnSpec) {
	s, err := New(name, cols...)
	if err != nil {
		panic(err)
	}
	r.put(s)
}

func (r *Registry) put(s TableSchema) {
	r.order = append(r.order, s.Name)
	r.tables[s.Name] = s
}

// Lookup returns the schema for a table name.
func (r *Registry) Lookup(name string) (TableSchema, bool) {
	s, ok := r.tables[name]
	return s, ok
}

// MustLookup is Lookup for names known at compile time.
func (r *Registry) MustLookup(name string) TableSchema {
	s, ok := r.tables[name]
	if !ok {
		panic(fmt.Sprintf("schema: unknown table %q", name))
	}
	return s
}

// Names returns table names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tables returns every schema in declaration order.
func (r *Registry) Tables() []TableSchema {
	out := make([]TableSchema, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tables[n])
	}
	return out
}

// Has reports whether every name resolves. The first unknown name is returned.
func (r *Registry) Has(names ...string) (string, bool) {
	for _, n := range names {
		if _, ok := r.tables[n]; !ok {
			return n, false
		}
	}
	return "", true
}
