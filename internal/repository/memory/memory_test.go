package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

func TestSchoolStore_caseInsensitiveNames(t *testing.T) {
	ctx := context.Background()
	store := NewSchoolStore(Open())

	first := model.School{Name: "Green Valley"}
	require.NoError(t, store.Create(ctx, &first))
	assert.NotEmpty(t, first.ID)

	dup := model.School{Name: "GREEN valley"}
	assert.ErrorIs(t, store.Create(ctx, &dup), repository.ErrSchoolNameExists)

	taken, err := store.NameTaken(ctx, "green VALLEY", "")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = store.NameTaken(ctx, "green valley", first.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a school does not collide with itself")

	other := model.School{Name: "Hillside"}
	require.NoError(t, store.Create(ctx, &other))
	name := "Green Valley"
	_, err = store.Update(ctx, other.ID, model.SchoolPatch{Name: &name})
	assert.ErrorIs(t, err, repository.ErrSchoolNameExists)

	_, err = store.Update(ctx, "missing", model.SchoolPatch{Name: &name})
	assert.ErrorIs(t, err, repository.ErrSchoolNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Green Valley", list[0].Name)
	assert.Equal(t, "Hillside", list[1].Name)
}

func TestSchoolStore_accentsAreDistinct(t *testing.T) {
	ctx := context.Background()
	store := NewSchoolStore(Open())

	require.NoError(t, store.Create(ctx, &model.School{Name: "École Saint-Paul"}))
	require.NoError(t, store.Create(ctx, &model.School{Name: "Ecole Saint-Paul"}))

	dup := model.School{Name: "ÉCOLE saint-paul"}
	assert.ErrorIs(t, store.Create(ctx, &dup), repository.ErrSchoolNameExists)
}

func TestSchoolStore_deleteCascades(t *testing.T) {
	ctx := context.Background()
	db := Open()
	schools, students := NewSchoolStore(db), NewStudentStore(db)
	attendance, messages, users := NewAttendanceStore(db), NewMessageStore(db), NewUserStore(db)

	s1 := model.School{Name: "One"}
	s2 := model.School{Name: "Two"}
	require.NoError(t, schools.Create(ctx, &s1))
	require.NoError(t, schools.Create(ctx, &s2))
	for _, sid := range []string{s1.ID, s2.ID} {
		require.NoError(t, students.Create(ctx, &model.Student{SchoolID: sid, RFID: "A1", Name: "n", AdmissionNumber: "1", ParentPhone: "p"}))
		require.NoError(t, attendance.Append(ctx, &model.Attendance{SchoolID: sid, RFID: "A1", Event: model.EventIn}))
		require.NoError(t, messages.Append(ctx, &model.Message{SchoolID: sid, RFID: "A1", PhoneNumber: "p", Status: model.MessageSent}))
	}
	admin := model.User{Username: "admin1", Role: model.RoleAdmin, SchoolID: &s1.ID}
	require.NoError(t, users.Create(ctx, &admin))

	require.NoError(t, schools.Delete(ctx, s1.ID))
	assert.ErrorIs(t, schools.Delete(ctx, s1.ID), repository.ErrSchoolNotFound)

	n, _ := students.Count(ctx, s1.ID)
	assert.Zero(t, n)
	n, _ = students.Count(ctx, s2.ID)
	assert.Equal(t, 1, n)
	n, _ = attendance.Count(ctx, repository.EventFilter{SchoolID: s1.ID})
	assert.Zero(t, n)
	n, _ = attendance.Count(ctx, repository.EventFilter{})
	assert.Equal(t, 1, n)
	n, _ = messages.Count(ctx, repository.MessageFilter{})
	assert.Equal(t, 1, n)

	_, err := users.GetByID(ctx, admin.ID)
	assert.NoError(t, err, "users are not owned by the school")
}

func TestStudentStore_uniquePerSchool(t *testing.T) {
	ctx := context.Background()
	store := NewStudentStore(Open())

	st := model.Student{SchoolID: "S1", RFID: "TAG", Name: "Ann", AdmissionNumber: "1", ParentPhone: "0700"}
	require.NoError(t, store.Create(ctx, &st))
	dup := st
	dup.ID = ""
	assert.ErrorIs(t, store.Create(ctx, &dup), repository.ErrStudentExists)

	dup.SchoolID = "S2"
	assert.NoError(t, store.Create(ctx, &dup), "the same tag may exist in another school")

	other := model.Student{SchoolID: "S1", RFID: "TAG2", Name: "Ben", AdmissionNumber: "2", ParentPhone: "0701"}
	require.NoError(t, store.Create(ctx, &other))
	rfid := "TAG"
	_, err := store.Update(ctx, "S1", "TAG2", model.StudentPatch{RFID: &rfid})
	assert.ErrorIs(t, err, repository.ErrStudentExists)

	rfid = "TAG3"
	got, err := store.Update(ctx, "S1", "TAG2", model.StudentPatch{RFID: &rfid})
	require.NoError(t, err)
	assert.Equal(t, "TAG3", got.RFID)
	_, err = store.Get(ctx, "S1", "TAG2")
	assert.ErrorIs(t, err, repository.ErrStudentNotFound)

	n, err := store.DeleteBySchool(ctx, "S1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = store.DeleteBySchool(ctx, "S1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStudentStore_upsert(t *testing.T) {
	ctx := context.Background()
	store := NewStudentStore(Open())
	second := "0799"

	batch := []model.Student{
		{SchoolID: "S1", RFID: "A", Name: "Ann", AdmissionNumber: "1", ParentPhone: "0700", ParentPhone2: &second},
		{SchoolID: "S1", RFID: "B", Name: "Ben", AdmissionNumber: "2", ParentPhone: "0701"},
	}
	n, err := store.Upsert(ctx, batch)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	a, err := store.Get(ctx, "S1", "A")
	require.NoError(t, err)
	require.NoError(t, store.SetLastEvent(ctx, "S1", "A", model.LastEvent{Event: model.EventIn, Timestamp: time.Now()}))

	again := []model.Student{
		{SchoolID: "S1", RFID: "A", Name: "Ann Marie", AdmissionNumber: "1", ParentPhone: "0700"},
	}
	_, err = store.Upsert(ctx, again)
	require.NoError(t, err)

	got, err := store.Get(ctx, "S1", "A")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "Ann Marie", got.Name)
	require.NotNil(t, got.ParentPhone2, "a missing second phone keeps the stored one")
	assert.Equal(t, "0799", *got.ParentPhone2)
	require.NotNil(t, got.LastEvent)
	assert.Equal(t, model.EventIn, got.LastEvent.Event)

	count, _ := store.Count(ctx, "S1")
	assert.Equal(t, 2, count)
}

func TestEventStores_filters(t *testing.T) {
	ctx := context.Background()
	db := Open()
	attendance, messages := NewAttendanceStore(db), NewMessageStore(db)

	base := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	for i, ev := range []string{model.EventIn, model.EventOut, model.EventIn} {
		require.NoError(t, attendance.Append(ctx, &model.Attendance{
			SchoolID: "S1", RFID: "A", Event: ev, Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, attendance.Append(ctx, &model.Attendance{SchoolID: "S2", RFID: "A", Event: model.EventIn, Timestamp: base}))

	n, _ := attendance.Count(ctx, repository.EventFilter{SchoolID: "S1", Event: model.EventIn})
	assert.Equal(t, 2, n)
	n, _ = attendance.Count(ctx, repository.EventFilter{
		SchoolID: "S1",
		Window:   repository.Window{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)},
	})
	assert.Equal(t, 1, n, "window is half-open")

	list, err := attendance.List(ctx, repository.EventFilter{SchoolID: "S1"}, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, base.Add(2*time.Hour), list[0].Timestamp)
	assert.Equal(t, base.Add(time.Hour), list[1].Timestamp)

	require.NoError(t, messages.Append(ctx, &model.Message{SchoolID: "S1", Status: model.MessageSent}))
	require.NoError(t, messages.Append(ctx, &model.Message{SchoolID: "S1", Status: model.MessageFailed}))
	n, _ = messages.Count(ctx, repository.MessageFilter{SchoolID: "S1", Status: model.MessageFailed})
	assert.Equal(t, 1, n)
}
