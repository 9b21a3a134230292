// util/address_formatter.go

package util

import "strings"

// AddressFormatter qualifies bare registry identifiers into the remote
// directory's addressing scheme. It is a pure function of its configured
// expressions and domain.
//
// Expressions may reference ${groupPath} or ${subjectId}; the token is
// replaced with the (sanitized) identifier and the domain is appended when
// the expression does not already carry one.
type AddressFormatter struct {
	groupIdentifierExpression   string
	subjectIdentifierExpression string
	domain                      string
}

func NewAddressFormatter() *AddressFormatter {
	return &AddressFormatter{
		groupIdentifierExpression:   "${groupPath}",
		subjectIdentifierExpression: "${subjectId}",
	}
}

func (f *AddressFormatter) SetGroupIdentifierExpression(expr string) *AddressFormatter {
	f.groupIdentifierExpression = expr
	return f
}

func (f *AddressFormatter) SetSubjectIdentifierExpression(expr string) *AddressFormatter {
	f.subjectIdentifierExpression = expr
	return f
}

func (f *AddressFormatter) SetDomain(domain string) *AddressFormatter {
	f.domain = domain
	return f
}

// QualifyGroupAddress turns a fully qualified group name into the group's
// primary address. Namespace separators are not legal in the local part, so
// they become hyphens.
func (f *AddressFormatter) QualifyGroupAddress(groupName string) string {
	groupPath := strings.ReplaceAll(groupName, ":", "-")
	address := strings.ReplaceAll(f.groupIdentifierExpression, "${groupPath}", groupPath)
	return f.appendDomain(address)
}

// QualifySubjectAddress turns a subject identifier into the user's primary
// address.
func (f *AddressFormatter) QualifySubjectAddress(subjectID string) string {
	address := strings.ReplaceAll(f.subjectIdentifierExpression, "${subjectId}", subjectID)
	return f.appendDomain(address)
}

func (f *AddressFormatter) appendDomain(address string) string {
	address = strings.ToLower(address)
	if strings.Contains(address, "@") {
		return address
	}
	return address + "@" + f.domain
}
