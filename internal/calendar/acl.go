package calendar

import (
	"context"
	"strings"
)

// PrincipalKind identifies who an ACL rule grants access to.
type PrincipalKind int

const (
	PrincipalUnknown PrincipalKind = iota
	PrincipalUser
	PrincipalGroup
	PrincipalDomain
	PrincipalDefault
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalUser:
		return "user"
	case PrincipalGroup:
		return "group"
	case PrincipalDomain:
		return "domain"
	case PrincipalDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Principal is the parsed form of an ACL rule id such as "user:a@x.com".
// Value is the email, group address or domain; it is empty for the default
// (public) rule.
type Principal struct {
	Kind  PrincipalKind
	Value string
}

// ParsePrincipal parses an ACL rule id. Ids with an unrecognized scope are
// returned as PrincipalUnknown with the full id as value.
func ParsePrincipal(ruleID string) Principal {
	if ruleID == "default" {
		return Principal{Kind: PrincipalDefault}
	}

	scope, value, ok := strings.Cut(ruleID, ":")
	if !ok || value == "" {
		return Principal{Kind: PrincipalUnknown, Value: ruleID}
	}

	switch scope {
	case "user":
		return Principal{Kind: PrincipalUser, Value: value}
	case "group":
		return Principal{Kind: PrincipalGroup, Value: value}
	case "domain":
		return Principal{Kind: PrincipalDomain, Value: value}
	default:
		return Principal{Kind: PrincipalUnknown, Value: ruleID}
	}
}

// ListCalendarUsers returns the email addresses of the individual users
// granted access to the calendar. Groups, domains and the public default
// rule are ignored.
func (c *Client) ListCalendarUsers(ctx context.Context, calendarID string) (map[string]struct{}, error) {
	rules, err := c.ListACL(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	users := make(map[string]struct{})
	for _, rule := range rules {
		principal := ParsePrincipal(rule.Id)
		if principal.Kind != PrincipalUser {
			continue
		}
		users[principal.Value] = struct{}{}
	}

	return users, nil
}
