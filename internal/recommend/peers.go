package recommend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ever-flow/ETF/internal/database"
	"github.com/ever-flow/ETF/internal/profile"
)

// PeerPreference is one historical questionnaire answer together with the
// tickers that user ended up holding.
type PeerPreference struct {
	Profile       profile.Profile
	PreferredETFs []string
}

// peerCSVColumns is the required header of a peer-preferences file. The
// preferred_etfs column holds a comma-separated ticker list, quoted per the
// usual CSV rules.
var peerCSVColumns = []string{
	"risk_tolerance",
	"investment_horizon",
	"goal",
	"experience",
	"loss_aversion",
	"theme_preference",
	"preferred_etfs",
}

// LoadPeerCSV reads peer preferences from a CSV file. A missing file is not
// an error; collaborative filtering simply runs with no peers.
func LoadPeerCSV(path string) ([]PeerPreference, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open peer preferences: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read peer preferences header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range peerCSVColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("peer preferences missing column %q", required)
		}
	}

	var peers []PeerPreference
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("peer preferences line %d: %w", line, err)
		}
		p, perr := parsePeerRecord(record, col)
		if perr != nil {
			return nil, fmt.Errorf("peer preferences line %d: %w", line, perr)
		}
		peers = append(peers, p)
	}
	return peers, nil
}

func parsePeerRecord(record []string, col map[string]int) (PeerPreference, error) {
	field := func(name string) string {
		idx := col[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	intField := func(name string) (int, error) {
		v, err := strconv.Atoi(field(name))
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		return v, nil
	}

	var p PeerPreference
	var err error
	if p.Profile.RiskTolerance, err = intField("risk_tolerance"); err != nil {
		return p, err
	}
	if p.Profile.InvestmentHorizon, err = intField("investment_horizon"); err != nil {
		return p, err
	}
	if p.Profile.Goal, err = intField("goal"); err != nil {
		return p, err
	}
	if p.Profile.Experience, err = intField("experience"); err != nil {
		return p, err
	}
	if p.Profile.LossAversion, err = intField("loss_aversion"); err != nil {
		return p, err
	}
	if p.Profile.ThemePreference, err = intField("theme_preference"); err != nil {
		return p, err
	}
	for _, tk := range strings.Split(field("preferred_etfs"), ",") {
		if tk = strings.TrimSpace(tk); tk != "" {
			p.PreferredETFs = append(p.PreferredETFs, tk)
		}
	}
	return p, nil
}

// PeerStore persists peer preferences in sqlite so submitted profiles enlarge
// the collaborative-filtering base over time.
type PeerStore struct {
	db *database.DB
}

// NewPeerStore wraps an open database handle.
func NewPeerStore(db *database.DB) *PeerStore {
	return &PeerStore{db: db}
}

// Save appends one preference row.
func (s *PeerStore) Save(p PeerPreference) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO peer_preferences
		 (risk_tolerance, investment_horizon, goal, experience, loss_aversion, theme_preference, preferred_etfs)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Profile.RiskTolerance,
		p.Profile.InvestmentHorizon,
		p.Profile.Goal,
		p.Profile.Experience,
		p.Profile.LossAversion,
		p.Profile.ThemePreference,
		strings.Join(p.PreferredETFs, ","),
	)
	if err != nil {
		return fmt.Errorf("save peer preference: %w", err)
	}
	return nil
}

// All returns every stored preference in insertion order.
func (s *PeerStore) All() ([]PeerPreference, error) {
	rows, err := s.db.Conn().Query(
		`SELECT risk_tolerance, investment_horizon, goal, experience, loss_aversion, theme_preference, preferred_etfs
		 FROM peer_preferences ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load peer preferences: %w", err)
	}
	defer rows.Close()

	var peers []PeerPreference
	for rows.Next() {
		var p PeerPreference
		var etfs string
		if err := rows.Scan(
			&p.Profile.RiskTolerance,
			&p.Profile.InvestmentHorizon,
			&p.Profile.Goal,
			&p.Profile.Experience,
			&p.Profile.LossAversion,
			&p.Profile.ThemePreference,
			&etfs,
		); err != nil {
			return nil, fmt.Errorf("scan peer preference: %w", err)
		}
		for _, tk := range strings.Split(etfs, ",") {
			if tk = strings.TrimSpace(tk); tk != "" {
				p.PreferredETFs = append(p.PreferredETFs, tk)
			}
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}
