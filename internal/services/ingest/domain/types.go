// Package domain defines the ingest flows, their tasks and parameters
package domain

import (
	"encoding/json"
	"slices"

	"crimetrends/internal/core/sources"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/net/http/bind"
)

// Flow names as registered with the orchestrator
const (
	FlowParent    = "parent-flow"
	FlowWebToLake = "web-to-lake"
)

// Task names as recorded in the ledger
const (
	TaskDownload       = "download_file"
	TaskUpload         = "upload_to_lake"
	TaskUploadJob      = "upload_job_to_lake"
	TaskSubmitJob      = "submit_transform_job"
	TaskLocalTransform = "run_local_transform"
)

// Transform modes of the parent flow
const (
	TransformCluster = "cluster"
	TransformBeam    = "beam"
	TransformNone    = "none"
)

// Params are the parent flow parameters; zero values select the defaults
type Params struct {
	Cities    []sources.City `json:"cities,omitempty"`
	SDFrom    int            `json:"sd_from,omitempty" validate:"omitempty,gte=2000,lte=2100"`
	SDTo      int            `json:"sd_to,omitempty" validate:"omitempty,gte=2000,lte=2100"`
	Transform string         `json:"transform,omitempty" validate:"omitempty,oneof=cluster beam none"`
}

// ParseParams decodes and validates raw; empty input yields the zero Params
func ParseParams(raw json.RawMessage) (Params, error) {
	var p Params
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return Params{}, perr.WithField(perr.Wrap(err, perr.ErrorCodeJSON, "decode flow params"), "params")
		}
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks field ranges and the city selection
func (p Params) Validate() error {
	if err := bind.Get().Validator.Struct(p); err != nil {
		field, msg := bind.ValidationFieldAndMessage(err)
		return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", msg), field)
	}
	return p.Selection().Validate()
}

// Selection expands the parameters into a source selection
func (p Params) Selection() sources.Selection {
	s := sources.DefaultSelection()
	if len(p.Cities) > 0 {
		s.Cities = slices.Clone(p.Cities)
	}
	if p.SDFrom != 0 {
		s.SDFrom = p.SDFrom
	}
	if p.SDTo != 0 {
		s.SDTo = p.SDTo
	}
	return s
}
