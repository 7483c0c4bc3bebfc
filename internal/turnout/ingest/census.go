package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Layout is a census column mapping. It is chosen by configuration, never by
// looking at the file.
type Layout struct {
	Name string
	// MinFields is the field count below which a row is unusable.
	MinFields int
	Precinct  int
	VTD       int
}

// Census layouts.
var (
	// LayoutStatewide is the direct 11-field layout. Columns 3 and 4 are
	// present but carry nothing the reconciliation uses.
	LayoutStatewide = Layout{Name: "statewide", MinFields: 11, Precinct: -1, VTD: -1}
	// LayoutPrecinct is the 12-field precinct/VTD split.
	LayoutPrecinct = Layout{Name: "precinct", MinFields: 12, Precinct: 3, VTD: 4}
)

// Census columns shared by both layouts.
const (
	censusColCounty    = 0
	censusColDate      = 1
	censusColStatType  = 2
	censusColParty     = 5
	censusColRace      = 6
	censusColEthnicity = 7
	censusColSex       = 8
	censusColAge       = 9
	censusColCount     = 10
)

// ParseLayout resolves a layout name.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutStatewide.Name:
		return LayoutStatewide, nil
	case LayoutPrecinct.Name:
		return LayoutPrecinct, nil
	default:
		return Layout{}, fmt.Errorf("unknown census layout %q", name)
	}
}

// CensusTable is one census file.
type CensusTable struct {
	Rows []recon.CensusRow
	// Short counts lines with fewer fields than the layout requires.
	Short int
}

// ReadCensus reads a census file with the given layout.
func ReadCensus(r io.Reader, layout Layout) (CensusTable, error) {
	if layout.MinFields == 0 {
		return CensusTable{}, errors.New("census layout is not set")
	}
	var table CensusTable
	_, err := scan(r, func(rw row) error {
		if len(rw.fields) < layout.MinFields {
			table.Short++
			return nil
		}
		cr := recon.CensusRow{
			County:        rw.upperAt(censusColCounty),
			ElectionDate:  rw.at(censusColDate),
			StatType:      rw.at(censusColStatType),
			PartyCode:     rw.at(censusColParty),
			RaceCode:      rw.at(censusColRace),
			EthnicityCode: rw.at(censusColEthnicity),
			SexCode:       rw.at(censusColSex),
			AgeGroup:      rw.at(censusColAge),
			TotalVoters:   rw.at(censusColCount),
		}
		if layout.Precinct >= 0 {
			cr.Precinct = rw.at(layout.Precinct)
		}
		if layout.VTD >= 0 {
			cr.VTD = rw.at(layout.VTD)
		}
		table.Rows = append(table.Rows, cr)
		return nil
	})
	if err != nil {
		return CensusTable{}, err
	}
	return table, nil
}
