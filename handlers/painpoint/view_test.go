package painpoint

import (
	"encoding/json"
	"testing"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
)

func TestPresentByRole(t *testing.T) {
	author := uint(7)
	pp := &model.PainPoint{ID: 1, CourseID: 2, AuthorID: &author, Title: "Stacks"}

	tests := []struct {
		name       string
		role       model.Role
		wantAuthor bool
	}{
		{"teacher", model.RoleTeacher, false},
		{"student", model.RoleStudent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(Present(&model.User{ID: 1, Role: tt.role}, pp))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			_, hasAuthor := fields["author"]
			if hasAuthor != tt.wantAuthor {
				t.Fatalf("author present = %v, want %v (%s)", hasAuthor, tt.wantAuthor, raw)
			}
			if string(fields["course"]) != "2" {
				t.Fatalf("unexpected course %s", fields["course"])
			}
		})
	}
}

func TestPresentAllKeepsOrder(t *testing.T) {
	points := []model.PainPoint{{ID: 3}, {ID: 1}, {ID: 2}}
	out := PresentAll(&model.User{Role: model.RoleTeacher}, points)
	for i, v := range out {
		if v.(TeacherView).ID != points[i].ID {
			t.Fatalf("order changed at %d", i)
		}
	}
}
