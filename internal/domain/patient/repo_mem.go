package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

const memTable = "patient"

// memRow is the memdb object; the indexed columns are flattened out of the
// stored patient.
type memRow struct {
	ID        string
	MRN       string
	PatientID string
	Active    bool
	Patient   *Patient
}

func memSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			memTable: {
				Name: memTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.UUIDFieldIndex{Field: "ID"},
					},
					"mrn": {
						Name:    "mrn",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "MRN"},
					},
					"patient_id": {
						Name:         "patient_id",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "PatientID"},
					},
					"active": {
						Name:    "active",
						Indexer: &memdb.BoolFieldIndex{Field: "Active"},
					},
				},
			},
		},
	}
}

type patientRepoMem struct {
	db  *memdb.MemDB
	now func() time.Time
}

// NewMemRepo returns an in-process repository. It enforces the same unique
// keys as the patient table.
func NewMemRepo() (Repository, error) {
	mdb, err := memdb.NewMemDB(memSchema())
	if err != nil {
		return nil, fmt.Errorf("patient memdb: %w", err)
	}
	return &patientRepoMem{db: mdb, now: time.Now}, nil
}

func (r *patientRepoMem) Create(_ context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	txn := r.db.Txn(true)
	defer txn.Abort()

	if raw, _ := txn.First(memTable, "id", p.ID.String()); raw != nil {
		return fmt.Errorf("patient %s already exists", p.ID)
	}
	if err := r.checkUnique(txn, p); err != nil {
		return err
	}
	now := r.now().UTC()
	p.VersionID = 1
	p.CreatedAt, p.UpdatedAt = now, now
	if err := txn.Insert(memTable, toRow(p)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (r *patientRepoMem) Update(_ context.Context, p *Patient) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(memTable, "id", p.ID.String())
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrNotFound
	}
	if err := r.checkUnique(txn, p); err != nil {
		return err
	}
	prev := raw.(*memRow).Patient
	p.VersionID = prev.VersionID + 1
	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = r.now().UTC()
	if err := txn.Insert(memTable, toRow(p)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// checkUnique is the storage backstop for the MRN and active patient ID keys.
func (r *patientRepoMem) checkUnique(txn *memdb.Txn, p *Patient) error {
	if raw, _ := txn.First(memTable, "mrn", p.MRN); raw != nil && raw.(*memRow).ID != p.ID.String() {
		return &UniquenessError{Field: "mrn", Value: p.MRN, Message: "Patient Medical Record # must be unique"}
	}
	if p.PatientID == "" || !p.Active {
		return nil
	}
	it, err := txn.Get(memTable, "patient_id", p.PatientID)
	if err != nil {
		return err
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		row := obj.(*memRow)
		if row.Active && row.ID != p.ID.String() {
			return &UniquenessError{Field: "patient_id", Value: p.PatientID, Message: "Patient ID must be unique"}
		}
	}
	return nil
}

func (r *patientRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(memTable, "id", id.String())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw.(*memRow).Patient.Clone(), nil
}

func (r *patientRepoMem) FindByMRN(_ context.Context, mrn string, includeInactive bool) (*Patient, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(memTable, "mrn", mrn)
	if err != nil || raw == nil {
		return nil, err
	}
	row := raw.(*memRow)
	if !includeInactive && !row.Active {
		return nil, nil
	}
	return row.Patient.Clone(), nil
}

func (r *patientRepoMem) Delete(_ context.Context, id uuid.UUID) error {
	txn := r.db.Txn(true)
	defer txn.Abort()
	n, err := txn.DeleteAll(memTable, "id", id.String())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	txn.Commit()
	return nil
}

func (r *patientRepoMem) List(_ context.Context, c Criteria) ([]*Patient, int, error) {
	all, err := r.match(c)
	if err != nil {
		return nil, 0, err
	}
	return page(all, c), len(all), nil
}

func (r *patientRepoMem) Search(_ context.Context, c Criteria) ([]*Patient, error) {
	all, err := r.match(c)
	if err != nil {
		return nil, err
	}
	return page(all, c), nil
}

// match returns every record satisfying c, ordered like the SQL store.
func (r *patientRepoMem) match(c Criteria) ([]*Patient, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	var it memdb.ResultIterator
	var err error
	switch {
	case c.MRN != "":
		it, err = txn.Get(memTable, "mrn", c.MRN)
	case c.PatientID != "":
		it, err = txn.Get(memTable, "patient_id", c.PatientID)
	case c.Active != nil:
		it, err = txn.Get(memTable, "active", *c.Active)
	default:
		it, err = txn.Get(memTable, "id")
	}
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(c.Name)
	var out []*Patient
	for obj := it.Next(); obj != nil; obj = it.Next() {
		row := obj.(*memRow)
		p := row.Patient
		if c.MRN != "" && p.MRN != c.MRN {
			continue
		}
		if c.PatientID != "" && p.PatientID != c.PatientID {
			continue
		}
		if c.Active != nil && p.Active != *c.Active {
			continue
		}
		if name != "" && !nameMatches(p, name) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Lastname != b.Lastname {
			return a.Lastname < b.Lastname
		}
		if a.Firstname != b.Firstname {
			return a.Firstname < b.Firstname
		}
		return a.MRN < b.MRN
	})
	return out, nil
}

func nameMatches(p *Patient, lowered string) bool {
	for _, part := range []string{p.Firstname, p.Middlename, p.Lastname} {
		if strings.Contains(strings.ToLower(part), lowered) {
			return true
		}
	}
	return false
}

func page(all []*Patient, c Criteria) []*Patient {
	if c.Offset < 0 {
		c.Offset = 0
	}
	if c.Offset >= len(all) {
		return nil
	}
	all = all[c.Offset:]
	if c.Limit > 0 && c.Limit < len(all) {
		all = all[:c.Limit]
	}
	return all
}

func toRow(p *Patient) *memRow {
	return &memRow{
		ID:        p.ID.String(),
		MRN:       p.MRN,
		PatientID: p.PatientID,
		Active:    p.Active,
		Patient:   p.Clone(),
	}
}
