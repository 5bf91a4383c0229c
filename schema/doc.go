/*
Package schema declares the output tables of the regional merge.

Each TableSchema lists, in output order, the GTFS columns the merged feed keeps
and how every column is produced from a source row:

  - Passthrough: the raw cell is copied.
  - Namespaced: the per-source prefix is prepended (p0_, p1_, ...).
  - Constant: a fixed value replaces whatever the source carries.
  - Computed: the value comes from the run (feed_version timestamp).
  - Validated: the raw cell is copied after a validator tag check.

Column lists are written in the source convention where a leading asterisk
marks a namespaced identifier:

	trips := schema.MustParse("trips",
	    "route_id", "*service_id", "*trip_id", "trip_headsign", "direction_id", "*shape_id")

The asterisk never reaches the output header; see TableSchema.Header.

# Registries

NewRegistry returns the reference table set (constant agency_id, municipalities,
computed feed_version, colour checks). Basic returns the plain variant, a strict
subset with only passthrough and namespaced columns.
*/
package schema
