package schema

import (
	"path/filepath"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello_world"},
		{"Hello   World", "hello_world"},
		{"Hello\tWorld", "hello_world"},
		{"Hello-World", "hello_world"},
		{"Hello - World!", "hello_world_"},
		{"What? Why! (Because)", "what_why_because_"},
		{`a/b\c.d`, "a_b_c_d"},
		{`"Quoted" 'single'`, "_quoted_single_"},
		{"[brackets] #1 50% a+b*c^d:e;f|g", "_brackets_1_50_a_b_c_d_e_f_g"},
		{"already_snake__case", "already_snake_case"},
		{"Ünïcödé Title", "ünïcödé_title"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Slug(tt.title); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSlug_PunctuationClassesCollapse(t *testing.T) {
	variants := []string{
		"Hello World",
		"hello-world",
		"Hello...World",
		"HELLO / WORLD",
		"hello_-_world",
	}
	want := Slug(variants[0])
	for _, v := range variants[1:] {
		if got := Slug(v); got != want {
			t.Errorf("Slug(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"post", ExtHTML},
		{"page", ExtHTML},
		{"landing_page", ExtHTML},
		{"blogpost", ExtHTML},
		{"Post", ExtYAML},
		{"widget", ExtYAML},
		{"nav_menu_item", ExtYAML},
	}

	for _, tt := range tests {
		if got := Extension(tt.typ); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	repo := filepath.Join("/", "srv", "repo")

	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{
			name:   "post",
			record: Record{ID: 1, Type: "post", Title: "Hello World"},
			want:   filepath.Join(repo, "post", "hello_world.html"),
		},
		{
			name:   "custom type",
			record: Record{ID: 2, Type: "widget", Title: "Hello World"},
			want:   filepath.Join(repo, "widget", "hello_world.yml"),
		},
		{
			name:   "empty title",
			record: Record{ID: 12, Type: "page"},
			want:   filepath.Join(repo, "page", "page-12.html"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(repo, &tt.record)
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
			if again := Resolve(repo, &tt.record); again != got {
				t.Errorf("Resolve() not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestResolve_TitleChangeMovesFile(t *testing.T) {
	r := Record{ID: 4, Type: "post", Title: "First Title"}
	before := Resolve("/repo", &r)
	r.Title = "Second Title"
	if after := Resolve("/repo", &r); after == before {
		t.Errorf("title change should change the path, both are %q", after)
	}
}

func TestIsRecordFile(t *testing.T) {
	tests := map[string]bool{
		"post/a.html":     true,
		"widget/a.yml":    true,
		"a.yaml":          false,
		"uploads/img.png": false,
		"README":          false,
	}
	for path, want := range tests {
		if got := IsRecordFile(path); got != want {
			t.Errorf("IsRecordFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCheckType(t *testing.T) {
	tests := []struct {
		typ     string
		wantErr bool
	}{
		{"post", false},
		{"nav_menu_item", false},
		{"my-type.v2", false},
		{"", true},
		{"..", true},
		{".filesync", true},
		{"../x", true},
		{"a/b", true},
		{`a\b`, true},
	}

	for _, tt := range tests {
		if err := CheckType(tt.typ); (err != nil) != tt.wantErr {
			t.Errorf("CheckType(%q) error = %v, wantErr %v", tt.typ, err, tt.wantErr)
		}
	}
}
