package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/db"
	"github.com/lims/lims/internal/platform/hipaa"
)

const pgUniqueViolation = "23505"

type patientRepoPG struct {
	pool      *pgxpool.Pool
	encryptor hipaa.FieldEncryptor
}

// NewPGRepo returns a Postgres repository. enc may be nil to store contact
// fields in clear text.
func NewPGRepo(pool *pgxpool.Pool, enc hipaa.FieldEncryptor) Repository {
	return &patientRepoPG{pool: pool, encryptor: enc}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *patientRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, active, mrn, patient_id, identifiers, email_report,
	firstname, middlename, lastname, sex, gender, races, ethnicities,
	email, additional_emails, phone, mobile, address, birthdate,
	version_id, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.VersionID = 1
	row, err := r.encrypted(p)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, active, mrn, patient_id, identifiers, email_report,
			firstname, middlename, lastname, sex, gender, races, ethnicities,
			email, additional_emails, phone, mobile, address, birthdate, version_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING created_at, updated_at`,
		row.ID, row.Active, row.MRN, row.PatientID, row.Identifiers, row.EmailReport,
		row.Firstname, row.Middlename, row.Lastname, row.Sex, row.Gender, row.Races, row.Ethnicities,
		row.Email, row.AdditionalEmails, row.Phone, row.Mobile, row.Address, row.Birthdate, row.VersionID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapPGError(err, p)
}

// Update bumps version_id and fails with ErrNotFound when the row is gone.
func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	row, err := r.encrypted(p)
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			active=$2, mrn=$3, patient_id=$4, identifiers=$5, email_report=$6,
			firstname=$7, middlename=$8, lastname=$9, sex=$10, gender=$11, races=$12, ethnicities=$13,
			email=$14, additional_emails=$15, phone=$16, mobile=$17, address=$18, birthdate=$19,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1
		RETURNING version_id, updated_at`,
		row.ID, row.Active, row.MRN, row.PatientID, row.Identifiers, row.EmailReport,
		row.Firstname, row.Middlename, row.Lastname, row.Sex, row.Gender, row.Races, row.Ethnicities,
		row.Email, row.AdditionalEmails, row.Phone, row.Mobile, row.Address, row.Birthdate,
	).Scan(&p.VersionID, &p.UpdatedAt)
	return mapPGError(err, p)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scanOne(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, mapPGError(err, nil)
	}
	return p, nil
}

func (r *patientRepoPG) FindByMRN(ctx context.Context, mrn string, includeInactive bool) (*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM patient WHERE mrn = $1`
	if !includeInactive {
		query += ` AND active`
	}
	p, err := r.scanOne(r.conn(ctx).QueryRow(ctx, query, mrn))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, c Criteria) ([]*Patient, int, error) {
	where, args := criteriaSQL(c)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	patients, err := r.query(ctx, c, where, args)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *patientRepoPG) Search(ctx context.Context, c Criteria) ([]*Patient, error) {
	where, args := criteriaSQL(c)
	return r.query(ctx, c, where, args)
}

func (r *patientRepoPG) query(ctx context.Context, c Criteria, where string, args []interface{}) ([]*Patient, error) {
	sql := `SELECT ` + patientCols + ` FROM patient` + where + ` ORDER BY lastname, firstname, mrn`
	if c.Limit > 0 {
		args = append(args, c.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// criteriaSQL renders the WHERE clause for c with positional arguments.
func criteriaSQL(c Criteria) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if c.MRN != "" {
		add("mrn = $%d", c.MRN)
	}
	if c.PatientID != "" {
		add("patient_id = $%d", c.PatientID)
	}
	if c.Name != "" {
		args = append(args, "%"+c.Name+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(firstname ILIKE $%d OR middlename ILIKE $%d OR lastname ILIKE $%d)", n, n, n))
	}
	if c.Active != nil {
		add("active = $%d", *c.Active)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *patientRepoPG) scanOne(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Active, &p.MRN, &p.PatientID, &p.Identifiers, &p.EmailReport,
		&p.Firstname, &p.Middlename, &p.Lastname, &p.Sex, &p.Gender, &p.Races, &p.Ethnicities,
		&p.Email, &p.AdditionalEmails, &p.Phone, &p.Mobile, &p.Address, &p.Birthdate,
		&p.VersionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := r.decryptPHI(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// encrypted returns a copy of p ready to be written: PHI columns encrypted and
// JSONB grids never NULL.
func (r *patientRepoPG) encrypted(p *Patient) (*Patient, error) {
	row := p.Clone()
	if row.Identifiers == nil {
		row.Identifiers = []Identifier{}
	}
	if row.Races == nil {
		row.Races = []RaceRow{}
	}
	if row.Ethnicities == nil {
		row.Ethnicities = []EthnicityRow{}
	}
	if row.AdditionalEmails == nil {
		row.AdditionalEmails = []AdditionalEmail{}
	}
	if row.Address == nil {
		row.Address = []AddressEntry{}
	}
	var err error
	for _, f := range phiColumns(row) {
		if *f, err = r.encryptField(*f); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (r *patientRepoPG) decryptPHI(p *Patient) error {
	var err error
	for _, f := range phiColumns(p) {
		if *f, err = r.decryptField(*f); err != nil {
			return err
		}
	}
	return nil
}

func phiColumns(p *Patient) []*string {
	cols := map[string]*string{"email": &p.Email, "phone": &p.Phone, "mobile": &p.Mobile}
	out := make([]*string, 0, len(cols))
	for _, name := range hipaa.PatientPHIFields {
		if f, ok := cols[name]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *patientRepoPG) encryptField(value string) (string, error) {
	if r.encryptor == nil || value == "" {
		return value, nil
	}
	out, err := r.encryptor.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("encrypting PHI field: %w", err)
	}
	return out, nil
}

func (r *patientRepoPG) decryptField(value string) (string, error) {
	if r.encryptor == nil || value == "" {
		return value, nil
	}
	out, err := r.encryptor.Decrypt(value)
	if err != nil {
		return "", fmt.Errorf("decrypting PHI field: %w", err)
	}
	return out, nil
}

// mapPGError turns a missing row into ErrNotFound and a unique index
// violation into the matching UniquenessError.
func mapPGError(err error, p *Patient) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		ue := &UniquenessError{Field: "mrn", Message: "Patient Medical Record # must be unique"}
		if strings.Contains(pgErr.ConstraintName, "patient_id") {
			ue = &UniquenessError{Field: "patient_id", Message: "Patient ID must be unique"}
		}
		if p != nil {
			if ue.Field == "mrn" {
				ue.Value = p.MRN
			} else {
				ue.Value = p.PatientID
			}
		}
		return ue
	}
	return err
}
