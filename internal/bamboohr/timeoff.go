package bamboohr

import (
	"context"
	"fmt"
	"log"
)

// GetTimeOff returns the upcoming time off of every employee whose work
// email is in emails. The window starts at today and spans the client's
// lookahead.
func (c *Client) GetTimeOff(ctx context.Context, emails map[string]struct{}, today Date) ([]TimeOffRecord, error) {
	employees, err := c.GetDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee directory: %w", err)
	}

	selected := FilterEmployeesByEmail(employees, emails)
	employeeIDs := make(map[ID]struct{}, len(selected))
	for _, employee := range selected {
		employeeIDs[employee.ID] = struct{}{}
	}
	log.Printf("Matched %d of %d employees against %d calendar users", len(selected), len(employees), len(emails))

	start, end := c.LookaheadWindow(today)
	whosOut, err := c.GetWhosOut(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get who's out: %w", err)
	}

	return FilterTimeOffByEmployee(whosOut, employeeIDs), nil
}

// FilterEmployeesByEmail keeps employees whose work email is present and is
// a member of emails. Matching is exact.
func FilterEmployeesByEmail(employees []Employee, emails map[string]struct{}) []Employee {
	var filtered []Employee
	for _, employee := range employees {
		if employee.WorkEmail == "" {
			continue
		}
		if _, ok := emails[employee.WorkEmail]; ok {
			filtered = append(filtered, employee)
		}
	}
	return filtered
}

// FilterTimeOffByEmployee keeps valid records belonging to one of the given
// employees. Invalid records are logged and dropped.
func FilterTimeOffByEmployee(records []TimeOffRecord, employeeIDs map[ID]struct{}) []TimeOffRecord {
	var filtered []TimeOffRecord
	for _, record := range records {
		if _, ok := employeeIDs[record.EmployeeID]; !ok {
			continue
		}
		if err := record.Validate(); err != nil {
			log.Printf("Warning: skipping malformed time off record: %v", err)
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}
