package store

import (
	"reflect"
	"strings"
	"testing"
)

func TestSchemaLocksAuditRoleToAppendOnly(t *testing.T) {
	if !strings.Contains(schemaSQL, "REVOKE UPDATE, DELETE, TRUNCATE ON decision_audit FROM fortuna_audit") {
		t.Error("schema does not revoke rewrite privileges from the audit role")
	}
	if !strings.Contains(schemaSQL, "GRANT INSERT, SELECT ON decision_audit TO fortuna_audit") {
		t.Error("schema does not grant the audit role its append and read privileges")
	}
}

func TestAuditStoreExposesNoRewritePath(t *testing.T) {
	storeType := reflect.TypeOf(&AuditStore{})

	allowed := map[string]bool{
		"Insert": true,
		"Find":   true,
		"Ping":   true,
		"Close":  true,
	}
	for i := 0; i < storeType.NumMethod(); i++ {
		name := storeType.Method(i).Name
		if !allowed[name] {
			t.Errorf("audit store exposes unexpected method %s", name)
		}
		if strings.Contains(name, "Update") || strings.Contains(name, "Delete") {
			t.Errorf("audit store exposes a rewrite path: %s", name)
		}
	}
}
