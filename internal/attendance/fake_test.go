package attendance

import (
	"context"
	"sort"
	"strconv"
)

type fakeStore struct {
	students map[int64]Student
	records  []Record
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{students: map[int64]Student{}}
}

func (f *fakeStore) addStudent(s Student) {
	f.students[s.ID] = s
}

func (f *fakeStore) addRecord(rec Record) {
	if rec.ID == "" {
		rec.ID = "rec-" + strconv.Itoa(len(f.records)+1)
	}
	f.records = append(f.records, rec)
}

func (f *fakeStore) CountStudents(ctx context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.students), nil
}

func (f *fakeStore) ListByDate(ctx context.Context, date string, order Order) ([]Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Record
	for _, rec := range f.records {
		if rec.Date != date {
			continue
		}
		if s, ok := f.students[rec.StudentID]; ok {
			rec.StudentName, rec.StudentEmail, rec.StudentPhone = s.Name, s.Email, s.Phone
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == Ascending {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (f *fakeStore) FindRecord(ctx context.Context, studentID int64, date string, session SessionType) (*Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.records {
		if rec.StudentID == studentID && rec.Date == date && rec.SessionType == session {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if f.err != nil {
		return Record{}, f.err
	}
	f.addRecord(rec)
	return f.records[len(f.records)-1], nil
}

func (f *fakeStore) ListStudents(ctx context.Context) ([]Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetStudent(ctx context.Context, id int64) (*Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
