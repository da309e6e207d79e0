package sheetstore

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/records"
)

const (
	recoletaColID = iota
	recoletaColPatient
	recoletaColUBS
	recoletaColNotified
	recoletaColObservations
)

// Tokens used in the notified column.
const (
	NotifiedYes = "SIM"
	NotifiedNo  = "NÃO"
)

// RecoletaColumns is the recoleta header row.
var RecoletaColumns = []string{"ID", "Paciente", "UBS", "Avisado", "OBS"}

// RecoletaCodec maps records.Recoleta to the A:E layout.
type RecoletaCodec struct{}

var _ Codec[records.Recoleta] = RecoletaCodec{}

func (RecoletaCodec) Columns() []string { return RecoletaColumns }

func (RecoletaCodec) Decode(row []string, offset int) (records.Recoleta, bool) {
	patient := cell(row, recoletaColPatient)
	if blank(patient) {
		return records.Recoleta{}, false
	}
	n := rowForOffset(offset)
	return records.Recoleta{
		ID:           decodeIdentity(cell(row, recoletaColID), n),
		PatientName:  patient,
		UBS:          cell(row, recoletaColUBS),
		Notified:     strings.EqualFold(strings.TrimSpace(cell(row, recoletaColNotified)), NotifiedYes),
		Observations: cell(row, recoletaColObservations),
		Row:          n,
	}, true
}

func (RecoletaCodec) Encode(r records.Recoleta) ([]string, error) {
	if blank(r.PatientName) {
		return nil, fmt.Errorf("%w: recoleta %q has no patient name", ErrInvalidRecord, r.ID)
	}
	notified := NotifiedNo
	if r.Notified {
		notified = NotifiedYes
	}
	return []string{r.ID, r.PatientName, r.UBS, notified, r.Observations}, nil
}

func (RecoletaCodec) Identity(r records.Recoleta) string { return r.ID }

func (RecoletaCodec) WithIdentity(r records.Recoleta, id string) records.Recoleta {
	r.ID = id
	return r
}

func (RecoletaCodec) WithRow(r records.Recoleta, row int) records.Recoleta {
	r.Row = row
	return r
}
