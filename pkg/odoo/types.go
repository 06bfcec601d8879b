package odoo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Odoo encodes "no value" as JSON false for strings, relations and binaries.
// The types below absorb that convention at decode time.

var jsonFalse = []byte("false")

func isFalsy(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, jsonFalse) || bytes.Equal(b, []byte("null"))
}

// falsyString decodes a string or false. false decodes to "".
type falsyString string

func (s *falsyString) UnmarshalJSON(b []byte) error {
	if isFalsy(b) {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = falsyString(v)
	return nil
}

// many2one decodes Odoo's [id, display_name] pair or false.
type many2one struct {
	ID   int64
	Name string
}

func (m *many2one) UnmarshalJSON(b []byte) error {
	if isFalsy(b) {
		*m = many2one{}
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("many2one: %w", err)
	}
	if len(pair) < 1 {
		*m = many2one{}
		return nil
	}
	if err := json.Unmarshal(pair[0], &m.ID); err != nil {
		return fmt.Errorf("many2one id: %w", err)
	}
	m.Name = ""
	if len(pair) > 1 && !isFalsy(pair[1]) {
		if err := json.Unmarshal(pair[1], &m.Name); err != nil {
			return fmt.Errorf("many2one name: %w", err)
		}
	}
	return nil
}

// idList decodes a list of record ids; false decodes to an empty list.
type idList []int64

func (l *idList) UnmarshalJSON(b []byte) error {
	if isFalsy(b) {
		*l = nil
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

type rawEmployee struct {
	ID        int64       `json:"id"`
	Name      falsyString `json:"name"`
	WorkEmail falsyString `json:"work_email"`
	Image128  falsyString `json:"image_128"`
	UserID    many2one    `json:"user_id"`
}

type rawMeeting struct {
	ID                int64       `json:"id"`
	Name              falsyString `json:"name"`
	Start             falsyString `json:"start"`
	Stop              falsyString `json:"stop"`
	UserID            many2one    `json:"user_id"`
	PartnerIDs        idList      `json:"partner_ids"`
	Location          falsyString `json:"location"`
	VideocallLocation falsyString `json:"videocall_location"`
	Description       falsyString `json:"description"`
}

type rawPartner struct {
	ID   int64       `json:"id"`
	Name falsyString `json:"name"`
}
