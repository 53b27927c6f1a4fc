package locate

import (
	"errors"
	"testing"

	"github.com/mwzhu/unwatermark/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		width, height int
		expected      types.SizeClass
	}{
		{1025, 1025, types.Large},
		{1024, 2000, types.Small},
		{2000, 1024, types.Small},
		{2000, 1000, types.Small},
		{1024, 1024, types.Small},
		{4096, 4096, types.Large},
		{48, 48, types.Small},
	}

	for _, tt := range tests {
		if got := Classify(tt.width, tt.height); got != tt.expected {
			t.Errorf("Classify(%d, %d) = %s, expected %s", tt.width, tt.height, got, tt.expected)
		}
	}
}

func TestFindLargeRegion(t *testing.T) {
	region, class, err := Find(1200, 1200)
	if err != nil {
		t.Fatalf("Find(1200, 1200) failed: %v", err)
	}
	if class != types.Large {
		t.Errorf("Expected large class, got %s", class)
	}

	expected := types.Region{X: 1040, Y: 1040, W: 96, H: 96}
	if region != expected {
		t.Errorf("Expected region %v, got %v", expected, region)
	}
}

func TestFindSmallRegion(t *testing.T) {
	region, class, err := Find(800, 600)
	if err != nil {
		t.Fatalf("Find(800, 600) failed: %v", err)
	}
	if class != types.Small {
		t.Errorf("Expected small class, got %s", class)
	}

	expected := types.Region{X: 800 - 32 - 48, Y: 600 - 32 - 48, W: 48, H: 48}
	if region != expected {
		t.Errorf("Expected region %v, got %v", expected, region)
	}
}

func TestFindRegionInsideBounds(t *testing.T) {
	dims := [][2]int{{80, 80}, {81, 600}, {1025, 1025}, {1920, 1080}, {4000, 3000}}
	for _, d := range dims {
		region, _, err := Find(d[0], d[1])
		if err != nil {
			t.Errorf("Find(%d, %d) failed: %v", d[0], d[1], err)
			continue
		}
		if region.X < 0 || region.Y < 0 || region.X+region.W > d[0] || region.Y+region.H > d[1] {
			t.Errorf("Find(%d, %d) region %v escapes image bounds", d[0], d[1], region)
		}
	}
}

func TestFindTooSmall(t *testing.T) {
	tests := [][2]int{
		{79, 600}, // width below small footprint (32+48)
		{600, 79}, // height below small footprint
		{47, 47},
		{0, 0},
	}

	for _, d := range tests {
		_, _, err := Find(d[0], d[1])
		if err == nil {
			t.Errorf("Find(%d, %d) should fail for undersized image", d[0], d[1])
			continue
		}
		if !errors.Is(err, ErrTooSmall) {
			t.Errorf("Find(%d, %d) error should wrap ErrTooSmall, got %v", d[0], d[1], err)
		}
	}
}

func TestFindSmallestAccepted(t *testing.T) {
	// 80x80 is the exact small footprint; the region degenerates to the corner.
	region, _, err := Find(80, 80)
	if err != nil {
		t.Fatalf("Find(80, 80) failed: %v", err)
	}
	expected := types.Region{X: 0, Y: 0, W: 48, H: 48}
	if region != expected {
		t.Errorf("Expected region %v, got %v", expected, region)
	}
}
