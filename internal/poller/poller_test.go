package poller

import (
	"fmt"
	"testing"

	"github.com/mergelens/mergelens/pkg/models"
)

func mr(iid int, sha string) models.MergeRequest {
	return models.MergeRequest{ProjectID: 1, IID: iid, SHA: sha}
}

func TestSelectUnseen_FirstListingIsAllFresh(t *testing.T) {
	listing := []models.MergeRequest{mr(1, "aaa"), mr(2, "bbb")}

	fresh, next := selectUnseen(map[string]struct{}{}, listing)

	if len(fresh) != 2 {
		t.Fatalf("Expected 2 fresh MRs, got %d", len(fresh))
	}
	if len(next) != 2 {
		t.Errorf("Expected both SHAs recorded, got %d", len(next))
	}
}

func TestSelectUnseen_StableListingQueuesNothing(t *testing.T) {
	listing := []models.MergeRequest{mr(1, "aaa"), mr(2, "bbb")}

	_, seen := selectUnseen(map[string]struct{}{}, listing)
	fresh, _ := selectUnseen(seen, listing)

	if len(fresh) != 0 {
		t.Errorf("Expected no fresh MRs on an unchanged listing, got %d", len(fresh))
	}
}

func TestSelectUnseen_NewPushIsFresh(t *testing.T) {
	_, seen := selectUnseen(map[string]struct{}{}, []models.MergeRequest{mr(1, "aaa"), mr(2, "bbb")})

	// MR 2 got a new head SHA
	fresh, _ := selectUnseen(seen, []models.MergeRequest{mr(1, "aaa"), mr(2, "ccc")})

	if len(fresh) != 1 {
		t.Fatalf("Expected only the re-pushed MR, got %d", len(fresh))
	}
	if fresh[0].IID != 2 || fresh[0].SHA != "ccc" {
		t.Errorf("Expected MR 2 at ccc, got %+v", fresh[0])
	}
}

func TestSelectUnseen_ClosedMRsAreEvicted(t *testing.T) {
	_, seen := selectUnseen(map[string]struct{}{}, []models.MergeRequest{mr(1, "aaa"), mr(2, "bbb")})

	// MR 2 merged and left the listing
	_, next := selectUnseen(seen, []models.MergeRequest{mr(1, "aaa")})

	if len(next) != 1 {
		t.Errorf("Expected the merged MR's SHA to be evicted, got %d entries", len(next))
	}
	if _, ok := next["bbb"]; ok {
		t.Error("Expected bbb to be gone")
	}
}

func TestSelectUnseen_SkipsEmptySHA(t *testing.T) {
	fresh, next := selectUnseen(map[string]struct{}{}, []models.MergeRequest{mr(1, "")})

	if len(fresh) != 0 || len(next) != 0 {
		t.Errorf("Expected MRs without a SHA to be ignored, got %d/%d", len(fresh), len(next))
	}
}

func TestSelectUnseen_StaysBoundedByListing(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 3; i++ {
		listing := make([]models.MergeRequest, 0, 100)
		for j := 0; j < 100; j++ {
			listing = append(listing, mr(j, fmt.Sprintf("sha-%d-%d", i, j)))
		}
		_, seen = selectUnseen(seen, listing)
	}

	if len(seen) != 100 {
		t.Errorf("Expected the seen set bounded by the listing size, got %d", len(seen))
	}
}
