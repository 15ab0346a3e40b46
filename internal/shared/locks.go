package shared

import "fmt"

// SequenceLockKey builds the advisory-lock key serializing document number
// allocation per tenant and document type.
func SequenceLockKey(tenantID, docType string) string {
	return fmt.Sprintf("numbering:%s:%s:lock", tenantID, docType)
}
