package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/profile"
)

// profileJSON mirrors profile.Profile for decoding (spec.md §1: "input,
// not owned by the core" — config-file parsing is this package's own
// job, never the profile package's). ScanMode is a string here so the
// config file reads "smart"/"flat" instead of an opaque integer.
type profileJSON struct {
	Name          string   `json:"name"`
	Source        string   `json:"source"`
	Destination   string   `json:"destination"`
	UseSnapshot   bool     `json:"useSnapshot"`
	ScanMode      string   `json:"scanMode"`
	MaxSizeBytes  int64    `json:"maxSizeBytes"`
	MaxFiles      int64    `json:"maxFiles"`
	MaxDepth      int      `json:"maxDepth"`
	MinSizeBytes  int64    `json:"minSizeBytes"`
	Enabled       *bool    `json:"enabled"`
	CopierArgs    []string `json:"copierArgs"`
	MaxConcurrent int      `json:"maxConcurrent"`
	Schedule      string   `json:"schedule"`
}

// LoadProfiles reads and decodes the JSON profiles configuration file
// at path into the domain's Profile shape.
func LoadProfiles(path string) ([]profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading profiles configuration")
	}

	var raw []profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing profiles configuration")
	}

	profiles := make([]profile.Profile, 0, len(raw))

	for _, r := range raw {
		if r.Name == "" {
			return nil, errors.New("profile entry missing required \"name\" field")
		}

		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}

		profiles = append(profiles, profile.Profile{
			Name:        r.Name,
			Source:      r.Source,
			Destination: r.Destination,
			UseSnapshot: r.UseSnapshot,
			ScanMode:    parseScanMode(r.ScanMode),
			Limits: profile.Limits{
				MaxSizeBytes: r.MaxSizeBytes,
				MaxFiles:     r.MaxFiles,
				MaxDepth:     r.MaxDepth,
				MinSizeBytes: r.MinSizeBytes,
			},
			Enabled:       enabled,
			CopierArgs:    r.CopierArgs,
			MaxConcurrent: r.MaxConcurrent,
			Schedule:      r.Schedule,
		})
	}

	return profiles, nil
}

func parseScanMode(s string) profile.ScanMode {
	if strings.EqualFold(s, "flat") {
		return profile.Flat
	}

	return profile.Smart
}
