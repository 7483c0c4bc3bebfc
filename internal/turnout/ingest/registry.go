package ingest

import (
	"io"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Registry column positions.
const (
	regColCounty    = 1
	regColID        = 3
	regColRace      = 26
	regColEthnicity = 27
	regColParty     = 28
	regColSex       = 29
	regColBirthYear = 30
)

// RegistryStats describes a registry load.
type RegistryStats struct {
	Rows       int
	Skipped    int
	Voters     int
	Duplicates int
}

// LoadRegistry reads the voter registry into a lookup. Duplicate voter ids
// keep their first row.
func LoadRegistry(r io.Reader) (*recon.Registry, RegistryStats, error) {
	reg := recon.NewRegistry()
	var stats RegistryStats
	rows, err := scan(r, func(rw row) error {
		id := rw.at(regColID)
		if isHeader(id, "ncid") {
			stats.Skipped++
			return nil
		}
		reg.Add(recon.VoterAttributes{
			VoterID:          id,
			RegisteredCounty: rw.upperAt(regColCounty),
			PartyCode:        rw.at(regColParty),
			RaceCode:         rw.at(regColRace),
			EthnicityCode:    rw.at(regColEthnicity),
			SexCode:          rw.at(regColSex),
			BirthYear:        rw.at(regColBirthYear),
		})
		return nil
	})
	if err != nil {
		return nil, RegistryStats{}, err
	}
	stats.Rows = rows
	stats.Voters = reg.Len()
	stats.Duplicates = reg.Duplicates()
	return reg, stats, nil
}
