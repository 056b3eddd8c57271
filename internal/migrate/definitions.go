package migrate

import (
	"context"
	"database/sql"
	"fmt"
)

// released is the migration history of the activity database. Append only.
var released = []Definition{
	{Version: 1, Name: "create_activities", Apply: Exec(
		`CREATE TABLE IF NOT EXISTS activities (
			activity_id             INTEGER PRIMARY KEY,
			activity_date           DATE NOT NULL,
			activity_name           TEXT,
			start_time_local        TIMESTAMP,
			location_name           TEXT,
			total_time_seconds      INTEGER,
			total_distance_km       REAL,
			avg_pace_seconds_per_km REAL,
			avg_heart_rate          INTEGER,
			max_heart_rate          INTEGER,
			avg_cadence             INTEGER,
			elevation_gain_m        REAL,
			elevation_loss_m        REAL,
			created_at              TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(activity_date)`,
	)},
	{Version: 2, Name: "create_performance_tables", Apply: Exec(
		// Child tables carry activity_id without REFERENCES so each can be
		// regenerated independently of activities.
		`CREATE TABLE IF NOT EXISTS splits (
			activity_id             INTEGER NOT NULL,
			split_index             INTEGER NOT NULL,
			distance_km             REAL,
			duration_seconds        REAL,
			pace_seconds_per_km     REAL,
			heart_rate              INTEGER,
			cadence                 REAL,
			power                   REAL,
			stride_length_cm        REAL,
			ground_contact_time_ms  REAL,
			vertical_oscillation_cm REAL,
			vertical_ratio_percent  REAL,
			elevation_gain_m        REAL,
			elevation_loss_m        REAL,
			terrain_type            TEXT,
			PRIMARY KEY (activity_id, split_index)
		)`,
		`CREATE TABLE IF NOT EXISTS form_efficiency (
			activity_id   INTEGER PRIMARY KEY,
			gct_average   REAL,
			gct_rating    TEXT,
			vo_average    REAL,
			vo_rating     TEXT,
			vr_average    REAL,
			vr_rating     TEXT,
			overall_score REAL
		)`,
		`CREATE TABLE IF NOT EXISTS heart_rate_zones (
			activity_id          INTEGER NOT NULL,
			zone_number          INTEGER NOT NULL,
			zone_low_boundary    INTEGER,
			zone_high_boundary   INTEGER,
			time_in_zone_seconds REAL,
			zone_percentage      REAL,
			PRIMARY KEY (activity_id, zone_number)
		)`,
		`CREATE TABLE IF NOT EXISTS hr_efficiency (
			activity_id          INTEGER PRIMARY KEY,
			primary_zone         TEXT,
			zone_distribution    TEXT,
			aerobic_efficiency   TEXT,
			training_quality     TEXT,
			zone2_focus          BOOLEAN,
			zone4_threshold_work BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS performance_trends (
			activity_id         INTEGER PRIMARY KEY,
			pace_consistency    REAL,
			hr_drift_percentage REAL,
			cadence_consistency TEXT,
			fatigue_pattern     TEXT,
			warmup_splits       TEXT,
			run_splits          TEXT,
			cooldown_splits     TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS vo2_max (
			activity_id   INTEGER PRIMARY KEY,
			precise_value REAL,
			value         REAL,
			date          DATE,
			category      INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS lactate_threshold (
			activity_id                INTEGER PRIMARY KEY,
			heart_rate                 INTEGER,
			speed_mps                  REAL,
			date_hr                    TIMESTAMP,
			functional_threshold_power INTEGER,
			power_to_weight            REAL,
			weight                     REAL,
			date_power                 TIMESTAMP
		)`,
	)},
	{Version: 3, Name: "create_body_composition", Apply: Exec(
		`CREATE TABLE IF NOT EXISTS body_composition (
			measurement_id       INTEGER PRIMARY KEY,
			date                 DATE NOT NULL UNIQUE,
			weight_kg            REAL,
			body_fat_percentage  REAL,
			muscle_mass_kg       REAL,
			bone_mass_kg         REAL,
			bmi                  REAL,
			hydration_percentage REAL,
			basal_metabolic_rate INTEGER,
			measurement_source   TEXT,
			created_at           TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	)},
	{Version: 4, Name: "create_time_series_metrics", Apply: Exec(
		`CREATE TABLE IF NOT EXISTS time_series_metrics (
			activity_id          INTEGER NOT NULL,
			seq_no               INTEGER NOT NULL,
			timestamp_s          INTEGER NOT NULL,
			heart_rate           REAL,
			speed                REAL,
			cadence              REAL,
			power                REAL,
			elevation            REAL,
			ground_contact_time  REAL,
			vertical_oscillation REAL,
			vertical_ratio       REAL,
			stride_length        REAL,
			PRIMARY KEY (activity_id, seq_no)
		)`,
	)},
	{Version: 5, Name: "create_section_analyses", Apply: Exec(
		`CREATE TABLE IF NOT EXISTS section_analyses (
			analysis_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			activity_id   INTEGER NOT NULL,
			activity_date DATE,
			section_type  TEXT NOT NULL,
			analysis_data TEXT NOT NULL,
			agent_name    TEXT,
			agent_version TEXT,
			created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (activity_id, section_type)
		)`,
	)},
	{Version: 6, Name: "add_activity_weather", Apply: addColumns("activities", []column{
		{"temperature_c", "REAL"},
		{"humidity_percent", "REAL"},
		{"wind_speed_ms", "REAL"},
		{"weather_description", "TEXT"},
	})},
}

// Definitions returns the released migrations in version order.
func Definitions() []Definition {
	out := make([]Definition, len(released))
	copy(out, released)
	return out
}

type column struct {
	name     string
	declType string
}

// addColumns adds each column that the table does not have yet.
// SQLite has no ADD COLUMN IF NOT EXISTS.
func addColumns(table string, cols []column) ApplyFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		existing, err := columnNames(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, col := range cols {
			if existing[col.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.declType)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", table, col.name, err)
			}
		}
		return nil
	}
}

// columnNames returns the set of column names of table.
func columnNames(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return names, nil
}
