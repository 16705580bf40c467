package bamboohr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a BambooHR identifier in canonical string form. The directory
// endpoint reports ids as strings while who's out reports them as numbers,
// so both are normalized here before any comparison.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", data)
	}
	// 42 and 42.0 are the same employee.
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = ID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// Employee is a single entry of the company directory.
type Employee struct {
	ID          ID     `json:"id"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	WorkEmail   string `json:"workEmail"`
}

// Directory is the body of GET /v1/employees/directory.
type Directory struct {
	Employees []Employee `json:"employees"`
}

// TimeOffRecord is one entry of the who's out listing. Company holidays use
// the same shape with Type "holiday" and no employee id.
type TimeOffRecord struct {
	ID         ID     `json:"id"`
	Type       string `json:"type"`
	EmployeeID ID     `json:"employeeId"`
	Name       string `json:"name"`
	Start      Date   `json:"start"`
	End        Date   `json:"end"`

	// dateErr keeps an unparseable start or end so that one bad entry does
	// not fail the decode of the whole listing.
	dateErr error
}

// UnmarshalJSON decodes a who's out entry. Dates that cannot be parsed are
// left zero and reported by Validate.
func (r *TimeOffRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         ID              `json:"id"`
		Type       string          `json:"type"`
		EmployeeID ID              `json:"employeeId"`
		Name       string          `json:"name"`
		Start      json.RawMessage `json:"start"`
		End        json.RawMessage `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = TimeOffRecord{
		ID:         raw.ID,
		Type:       raw.Type,
		EmployeeID: raw.EmployeeID,
		Name:       raw.Name,
	}

	var err error
	if r.Start, err = decodeRecordDate(raw.Start); err != nil {
		r.dateErr = fmt.Errorf("start: %w", err)
	}
	if r.End, err = decodeRecordDate(raw.End); err != nil && r.dateErr == nil {
		r.dateErr = fmt.Errorf("end: %w", err)
	}
	return nil
}

func decodeRecordDate(raw json.RawMessage) (Date, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Date{}, nil
	}
	var d Date
	if err := d.UnmarshalJSON(raw); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Validate checks the invariants the calendar mapping relies on.
func (r TimeOffRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("time off record has no id")
	}
	if r.dateErr != nil {
		return fmt.Errorf("time off record %s has an invalid %w", r.ID, r.dateErr)
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("time off record %s is missing its start or end date", r.ID)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("time off record %s ends (%s) before it starts (%s)", r.ID, r.End, r.Start)
	}
	return nil
}

// TimeOffRequest is one entry of GET /v1/time_off/requests.
type TimeOffRequest struct {
	ID         ID     `json:"id"`
	EmployeeID ID     `json:"employeeId"`
	Name       string `json:"name"`
	Start      Date   `json:"start"`
	End        Date   `json:"end"`
	Status     struct {
		Status string `json:"status"`
	} `json:"status"`
	Type struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	} `json:"type"`
	Amount struct {
		Unit   string `json:"unit"`
		Amount string `json:"amount"`
	} `json:"amount"`
}
