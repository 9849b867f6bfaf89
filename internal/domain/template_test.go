package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTemplate_TableNameAndString(t *testing.T) {
	if got := (Template{}).TableName(); got != "templates" {
		t.Fatalf("TableName = %q", got)
	}
	tpl := Template{Code: "welcome", Language: "pt", Version: 3}
	if got := tpl.String(); got != "welcome (lang=pt, v3)" {
		t.Fatalf("String = %q", got)
	}
}

func TestTemplate_Migration_GroupVersionUnique(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Template{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Template{}, "ux_templates_group_version") {
		t.Fatalf("expected unique index ux_templates_group_version")
	}
	if !m.HasIndex(&Template{}, "idx_templates_group_active") {
		t.Fatalf("expected index idx_templates_group_active")
	}

	now := time.Now().UTC()
	first := &Template{ID: "a", Code: "welcome", Name: "W", Language: "en", Content: "hi", Version: 1, CreatedAt: now}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := &Template{ID: "b", Code: "welcome", Name: "W", Language: "en", Content: "hi", Version: 1, CreatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (code, language, version)")
	}
	otherLang := &Template{ID: "c", Code: "welcome", Name: "W", Language: "pt", Content: "oi", Version: 1, CreatedAt: now}
	if err := db.Create(otherLang).Error; err != nil {
		t.Fatalf("same version in another language should be allowed: %v", err)
	}
	zero := &Template{ID: "d", Code: "zero", Name: "Z", Language: "en", Content: "x", Version: 0, CreatedAt: now}
	if err := db.Create(zero).Error; err == nil {
		t.Fatalf("expected check constraint violation for version 0")
	}
}

func TestTemplate_JSONShape(t *testing.T) {
	subj := "Hi {{ name }}"
	tpl := Template{
		ID: "id1", Code: "welcome", Name: "Welcome", Language: "en",
		Subject: &subj, Content: "Hello", Version: 2, IsActive: true,
	}
	raw, err := json.Marshal(tpl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"id", "code", "name", "language", "subject", "content", "version", "is_active", "created_at", "updated_at"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing JSON key %q in %s", k, raw)
		}
	}

	// A nil subject is serialized as null, not omitted.
	tpl.Subject = nil
	raw, _ = json.Marshal(tpl)
	m = map[string]any{}
	_ = json.Unmarshal(raw, &m)
	if v, ok := m["subject"]; !ok || v != nil {
		t.Fatalf("expected subject:null, got %v (present=%v)", v, ok)
	}
}
