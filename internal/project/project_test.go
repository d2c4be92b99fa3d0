package project

import (
	"errors"
	"strings"
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

func TestCreate(t *testing.T) {
	gormDB := openTestDB(t)

	p, err := Create(gormDB, "  P1  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected ID to be set")
	}
	if p.Name != "P1" {
		t.Errorf("Name = %q, want trimmed %q", p.Name, "P1")
	}
}

func TestCreate_Validation(t *testing.T) {
	gormDB := openTestDB(t)

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		_, err := Create(gormDB, name)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Create(%q) = %v, want validation error", name, err)
		}
	}
}

func TestCreate_DuplicateNamesAllowed(t *testing.T) {
	gormDB := openTestDB(t)
	if _, err := Create(gormDB, "Same"); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(gormDB, "Same"); err != nil {
		t.Errorf("second Create with same name: %v", err)
	}
}

func TestList_OrderedByName(t *testing.T) {
	gormDB := openTestDB(t)
	for _, n := range []string{"Zeta", "Alpha", "Mid"} {
		if _, err := Create(gormDB, n); err != nil {
			t.Fatal(err)
		}
	}
	got, err := List(gormDB)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, p := range got {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "Alpha,Mid,Zeta" {
		t.Errorf("List order = %v", names)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	got, err := List(openTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("List() = nil, want empty slice")
	}
}

func TestRename(t *testing.T) {
	gormDB := openTestDB(t)
	p, _ := Create(gormDB, "Old")

	got, err := Rename(gormDB, p.ID, "New")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got.Name != "New" {
		t.Errorf("Name = %q, want New", got.Name)
	}

	if _, err := Rename(gormDB, 9999, "X"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Rename missing = %v, want not found", err)
	}
}

func TestDelete_EmptyProject(t *testing.T) {
	gormDB := openTestDB(t)
	p, _ := Create(gormDB, "Empty")
	gormDB.Create(&models.TestCaseFolder{Name: "F", ProjectID: p.ID})
	gormDB.Create(&models.TestRunFolder{Name: "R", ProjectID: p.ID})

	if err := Delete(gormDB, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := Exists(gormDB, p.ID); ok {
		t.Error("project still exists after delete")
	}
	var folders int64
	gormDB.Model(&models.TestCaseFolder{}).Count(&folders)
	if folders != 0 {
		t.Errorf("%d folders left behind", folders)
	}
}

func TestDelete_BlockedByTestCase(t *testing.T) {
	gormDB := openTestDB(t)
	p, _ := Create(gormDB, "P1")
	if err := gormDB.Create(&models.TestCase{Name: "Login", ProjectID: p.ID}).Error; err != nil {
		t.Fatal(err)
	}

	err := Delete(gormDB, p.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Delete = %v, want conflict", err)
	}
	if !strings.Contains(err.Error(), "1 test case") {
		t.Errorf("error = %q, want to mention the test case count", err.Error())
	}
	if ok, _ := Exists(gormDB, p.ID); !ok {
		t.Error("project was deleted despite conflict")
	}
}

func TestDelete_BlockedByTestRun(t *testing.T) {
	gormDB := openTestDB(t)
	p, _ := Create(gormDB, "P1")
	gormDB.Create(&models.TestRun{Name: "Run1", ProjectID: p.ID, Status: models.RunStatusReadyToTest})

	if err := Delete(gormDB, p.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Delete = %v, want conflict", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	if err := Delete(openTestDB(t), 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete missing = %v, want not found", err)
	}
}
