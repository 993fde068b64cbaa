package diff

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleDiff = `@@ -1,4 +1,5 @@
 package main
-import "fmt"
+import (
+	"fmt"
+)

@@ -10,3 +11,4 @@ func main() {
 	fmt.Println("hello")
+	fmt.Println("world")
 }
`

func TestParseHunks(t *testing.T) {
	hunks := ParseHunks(sampleDiff)

	if len(hunks) != 2 {
		t.Fatalf("Expected 2 hunks, got %d", len(hunks))
	}

	if hunks[0].OldStart != 1 || hunks[0].OldCount != 4 {
		t.Errorf("Expected old range 1,4, got %d,%d", hunks[0].OldStart, hunks[0].OldCount)
	}
	if hunks[0].NewStart != 1 || hunks[0].NewCount != 5 {
		t.Errorf("Expected new range 1,5, got %d,%d", hunks[0].NewStart, hunks[0].NewCount)
	}

	if hunks[1].OldStart != 10 || hunks[1].NewStart != 11 {
		t.Errorf("Expected second hunk at 10/11, got %d/%d", hunks[1].OldStart, hunks[1].NewStart)
	}

	if strings.Contains(hunks[0].Content, "@@") {
		t.Error("Hunk content should not contain the header line")
	}
}

func TestParseHunks_SingleLineRanges(t *testing.T) {
	hunks := ParseHunks("@@ -1 +1 @@\n-old\n+new\n")

	if len(hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(hunks))
	}
	if hunks[0].OldCount != 1 || hunks[0].NewCount != 1 {
		t.Errorf("Expected implicit counts of 1, got %d/%d", hunks[0].OldCount, hunks[0].NewCount)
	}
}

func TestParseHunks_NoHunks(t *testing.T) {
	if hunks := ParseHunks("not a diff at all"); hunks != nil {
		t.Errorf("Expected nil for text without hunks, got %v", hunks)
	}
}

func TestStats(t *testing.T) {
	diffText := `--- a/main.go
+++ b/main.go
@@ -1,4 +1,5 @@
 package main
-import "fmt"
+import (
+	"fmt"
+)
`
	additions, deletions := Stats(diffText)

	if additions != 3 {
		t.Errorf("Expected 3 additions, got %d", additions)
	}
	if deletions != 1 {
		t.Errorf("Expected 1 deletion, got %d", deletions)
	}
}

func TestStats_Empty(t *testing.T) {
	additions, deletions := Stats("")
	if additions != 0 || deletions != 0 {
		t.Errorf("Expected zero stats for empty diff, got %d/%d", additions, deletions)
	}
}

func TestCommentableLines(t *testing.T) {
	newLines, oldLines := CommentableLines(sampleDiff)

	// Added and context lines from both hunks
	wantNew := map[int]bool{
		1: true, 2: true, 3: true, 4: true,
		11: true, 12: true, 13: true,
	}
	if diff := cmp.Diff(wantNew, newLines); diff != "" {
		t.Errorf("New lines mismatch (-want +got):\n%s", diff)
	}

	// Removed line from the first hunk
	if !oldLines[2] {
		t.Error("Expected old line 2 to be commentable")
	}

	if newLines[100] {
		t.Error("Line 100 is not in the diff")
	}
}

func TestAnnotate(t *testing.T) {
	out := Annotate(sampleDiff)

	if !strings.Contains(out, "OLD | NEW | CONTENT") {
		t.Error("Expected table header in annotated output")
	}
	if !strings.Contains(out, "  2 |     | -import \"fmt\"") {
		t.Errorf("Expected removed line annotated with old number only, got:\n%s", out)
	}
	if !strings.Contains(out, "    |   2 | +import (") {
		t.Errorf("Expected added line annotated with new number only, got:\n%s", out)
	}
	if !strings.Contains(out, "    |  12 | +\tfmt.Println(\"world\")") {
		t.Errorf("Expected second hunk to continue from its own start lines, got:\n%s", out)
	}
}

func TestAnnotate_NoHunksPassesThrough(t *testing.T) {
	text := "plain text"
	if got := Annotate(text); got != text {
		t.Errorf("Expected pass-through for text without hunks, got %q", got)
	}
}
