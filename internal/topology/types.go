// Package topology turns raw catalog collections into one row per solar system.
package topology

import (
	"fmt"
)

// Position is a point in the universe, in meters.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SystemRecord is a solar system as served by the catalog.
// Stargates is nil when the catalog omitted the field entirely.
type SystemRecord struct {
	SystemID        int64    `json:"system_id"`
	Name            string   `json:"name"`
	ConstellationID int64    `json:"constellation_id"`
	SecurityStatus  float64  `json:"security_status"`
	SecurityClass   string   `json:"security_class,omitempty"`
	Position        Position `json:"position"`
	Stargates       *[]int64 `json:"stargates"`
}

// ConstellationRecord is a constellation as served by the catalog.
type ConstellationRecord struct {
	ConstellationID int64  `json:"constellation_id"`
	Name            string `json:"name"`
	RegionID        int64  `json:"region_id"`
}

// RegionRecord is a region as served by the catalog.
type RegionRecord struct {
	RegionID int64  `json:"region_id"`
	Name     string `json:"name"`
}

// StargateDestination names the far side of a stargate.
type StargateDestination struct {
	StargateID int64 `json:"stargate_id"`
	SystemID   int64 `json:"system_id"`
}

// StargateRecord is one directed connection: it sits in SystemID and leads to Destination.SystemID.
type StargateRecord struct {
	StargateID  int64               `json:"stargate_id"`
	Name        string              `json:"name"`
	SystemID    int64               `json:"system_id"`
	Destination StargateDestination `json:"destination"`
}

// JoinedSystem is a system with its constellation and region attached.
// Unmatched foreign keys leave the pointers nil.
type JoinedSystem struct {
	System            SystemRecord
	ConstellationName *string
	RegionID          *int64
	RegionName        *string
}

// FlatSystem is a JoinedSystem with the nested position lifted into scalar columns.
type FlatSystem struct {
	ID                int64
	Name              string
	SecurityStatus    float64
	SecurityClass     string
	ConstellationID   *int64
	ConstellationName *string
	RegionID          *int64
	RegionName        *string
	X, Y, Z           float64
	Stargates         *[]int64
}

// NodeRecord is one row of the assembled topology table. IDs are unique within a table.
type NodeRecord struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	SecurityStatus    float64  `json:"security_status"`
	SecurityClass     string   `json:"security_class,omitempty"`
	RegionID          *int64   `json:"region_id"`
	RegionName        *string  `json:"region_name"`
	ConstellationID   *int64   `json:"constellation_id"`
	ConstellationName *string  `json:"constellation_name"`
	X                 float64  `json:"x"`
	Y                 float64  `json:"y"`
	Z                 float64  `json:"z"`
	Neighbors         []int64  `json:"neighbors"`
	Risk              *float64 `json:"risk,omitempty"`
}

// NodeID is the default key for staleness detection.
func NodeID(n NodeRecord) int64 { return n.ID }

// IncompleteRecordError marks a fetched record that is missing a required field.
// The record stays in the table but contributes no edges.
type IncompleteRecordError struct {
	ID    int64
	Name  string
	Field string
}

func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("system %d (%s) is missing field %q", e.ID, e.Name, e.Field)
}
