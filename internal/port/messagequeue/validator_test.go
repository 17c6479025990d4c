package messagequeue

import (
	"strings"
	"testing"
)

func TestSubject(t *testing.T) {
	if got := Subject("kanban", "taskUpdated"); got != "kanban.taskUpdated" {
		t.Errorf("Subject = %q", got)
	}
	if got := Wildcard("kanban"); got != "kanban.>" {
		t.Errorf("Wildcard = %q", got)
	}
}

func TestValidateValidBoardEvent(t *testing.T) {
	data := []byte(`{"event":"taskUpdated","data":{"id":"aaaaaaaaaaaa","state":"done"}}`)
	ev, err := Validate("kanban.taskUpdated", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Event != "taskUpdated" || !strings.Contains(string(ev.Data), `"state":"done"`) {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		wantErr string
	}{
		{"invalid json", "kanban.taskUpdated", `{not json`, "invalid JSON"},
		{"wrong shape", "kanban.taskUpdated", `{"event":42}`, "schema validation failed"},
		{"missing event", "kanban.taskUpdated", `{"data":{}}`, "missing event"},
		{"subject mismatch", "kanban.taskCreated", `{"event":"taskUpdated","data":{}}`, "does not match"},
		{"bare subject", "taskUpdated", `{"event":"taskUpdated","data":{}}`, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.subject, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
