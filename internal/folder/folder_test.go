package folder

import (
	"errors"
	"testing"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/db"
	"github.com/zulandar/testdeck/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenSQLite(":memory:", false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gormDB
}

func seedProject(t *testing.T, gormDB *gorm.DB, name string) uint {
	t.Helper()
	p := models.Project{Name: name}
	if err := gormDB.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p.ID
}

func TestCreateAndList_KindsAreIndependent(t *testing.T) {
	gormDB := openTestDB(t)
	pid := seedProject(t, gormDB, "P1")

	if _, err := Create(gormDB, TestCases, pid, "Smoke"); err != nil {
		t.Fatalf("Create case folder: %v", err)
	}
	if _, err := Create(gormDB, TestRuns, pid, "Sprint 12"); err != nil {
		t.Fatalf("Create run folder: %v", err)
	}

	caseFolders, err := List(gormDB, TestCases, pid)
	if err != nil {
		t.Fatal(err)
	}
	runFolders, err := List(gormDB, TestRuns, pid)
	if err != nil {
		t.Fatal(err)
	}
	if len(caseFolders) != 1 || caseFolders[0].Name != "Smoke" {
		t.Errorf("case folders = %+v", caseFolders)
	}
	if len(runFolders) != 1 || runFolders[0].Name != "Sprint 12" {
		t.Errorf("run folders = %+v", runFolders)
	}
}

func TestCreate_Validation(t *testing.T) {
	gormDB := openTestDB(t)
	pid := seedProject(t, gormDB, "P1")

	tests := []struct {
		name      string
		projectID uint
		folder    string
	}{
		{"empty name", pid, " "},
		{"missing project id", 0, "F"},
		{"unknown project", pid + 100, "F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(gormDB, TestCases, tt.projectID, tt.folder)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Create = %v, want validation error", err)
			}
		})
	}
}

func TestRename(t *testing.T) {
	gormDB := openTestDB(t)
	pid := seedProject(t, gormDB, "P1")
	f, _ := Create(gormDB, TestRuns, pid, "Old")

	got, err := Rename(gormDB, TestRuns, f.ID, "New")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got.Name != "New" {
		t.Errorf("Name = %q, want New", got.Name)
	}
	// Same id in the other kind's table does not exist.
	if _, err := Rename(gormDB, TestCases, f.ID, "X"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Rename wrong kind = %v, want not found", err)
	}
}

func TestDelete_ReparentsChildren(t *testing.T) {
	gormDB := openTestDB(t)
	pid := seedProject(t, gormDB, "P1")
	f, _ := Create(gormDB, TestCases, pid, "Smoke")

	tc := models.TestCase{Name: "Login", ProjectID: pid, FolderID: &f.ID}
	if err := gormDB.Create(&tc).Error; err != nil {
		t.Fatal(err)
	}

	if err := Delete(gormDB, TestCases, f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got models.TestCase
	if err := gormDB.First(&got, tc.ID).Error; err != nil {
		t.Fatalf("test case deleted along with folder: %v", err)
	}
	if got.FolderID != nil {
		t.Errorf("FolderID = %v, want nil", *got.FolderID)
	}
	if _, err := Get(gormDB, TestCases, f.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("folder still exists: %v", err)
	}
}

func TestDelete_RunFolderReparentsRuns(t *testing.T) {
	gormDB := openTestDB(t)
	pid := seedProject(t, gormDB, "P1")
	f, _ := Create(gormDB, TestRuns, pid, "Sprint")

	run := models.TestRun{Name: "Run1", ProjectID: pid, FolderID: &f.ID, Status: models.RunStatusReadyToTest}
	gormDB.Create(&run)

	if err := Delete(gormDB, TestRuns, f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var got models.TestRun
	gormDB.First(&got, run.ID)
	if got.FolderID != nil {
		t.Errorf("FolderID = %v, want nil", *got.FolderID)
	}
}

func TestCheckInProject(t *testing.T) {
	gormDB := openTestDB(t)
	p1 := seedProject(t, gormDB, "P1")
	p2 := seedProject(t, gormDB, "P2")
	f, _ := Create(gormDB, TestCases, p1, "Smoke")
	missing := uint(999)

	if err := CheckInProject(gormDB, TestCases, nil, p1); err != nil {
		t.Errorf("nil folder: %v", err)
	}
	if err := CheckInProject(gormDB, TestCases, &f.ID, p1); err != nil {
		t.Errorf("same project: %v", err)
	}
	if err := CheckInProject(gormDB, TestCases, &f.ID, p2); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("other project = %v, want validation", err)
	}
	if err := CheckInProject(gormDB, TestCases, &missing, p1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing folder = %v, want validation", err)
	}
}
