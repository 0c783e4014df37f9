package store

import (
	"encoding/json"
	"testing"
)

func TestUpsertDynamicPersonaCreate(t *testing.T) {
	db := testDB(t)

	dialogs := json.RawMessage(`["hi","hello"]`)
	tools := json.RawMessage(`["search"]`)
	created, err := db.UpsertDynamicPersona("luna-dynamic", "prompt v1", dialogs, tools)
	if err != nil {
		t.Fatalf("UpsertDynamicPersona: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	p, err := db.GetDynamicPersona("luna-dynamic")
	if err != nil {
		t.Fatalf("GetDynamicPersona: %v", err)
	}
	if p == nil {
		t.Fatal("expected persona, got nil")
	}
	if p.SystemPrompt != "prompt v1" {
		t.Errorf("SystemPrompt = %q", p.SystemPrompt)
	}
	if string(p.BeginDialogs) != `["hi","hello"]` {
		t.Errorf("BeginDialogs = %s", p.BeginDialogs)
	}
	if string(p.Tools) != `["search"]` {
		t.Errorf("Tools = %s", p.Tools)
	}
}

func TestUpsertDynamicPersonaUpdateKeepsTemplateFields(t *testing.T) {
	db := testDB(t)

	db.UpsertDynamicPersona("luna-dynamic", "v1", json.RawMessage(`["hi"]`), nil)
	created, err := db.UpsertDynamicPersona("luna-dynamic", "v2", json.RawMessage(`["changed"]`), json.RawMessage(`["x"]`))
	if err != nil {
		t.Fatalf("UpsertDynamicPersona update: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}

	p, _ := db.GetDynamicPersona("luna-dynamic")
	if p.SystemPrompt != "v2" {
		t.Errorf("SystemPrompt = %q, want v2", p.SystemPrompt)
	}
	if string(p.BeginDialogs) != `["hi"]` {
		t.Errorf("BeginDialogs changed on update: %s", p.BeginDialogs)
	}
	if p.Tools != nil {
		t.Errorf("Tools changed on update: %s", p.Tools)
	}

	var rows int
	db.QueryRow(`SELECT COUNT(*) FROM dynamic_personas WHERE persona_id = ?`, "luna-dynamic").Scan(&rows)
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestGetDynamicPersonaMissing(t *testing.T) {
	db := testDB(t)

	p, err := db.GetDynamicPersona("nope")
	if err != nil {
		t.Fatalf("GetDynamicPersona: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}
