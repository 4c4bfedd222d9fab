// Command simulate fires concurrent booking traffic at a running api-server
// and verifies the one-winner property: however many clients race for the
// same slot, the ledger must end with at most one Scheduled appointment per
// (doctor, date, slot).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/appointment-booking/internal/auth"
	"github.com/medilink/appointment-booking/internal/config"
	"github.com/medilink/appointment-booking/internal/db"
)

type simConfig struct {
	apiBaseURL string
	duration   time.Duration
	workers    int
}

type metrics struct {
	total     int64
	booked    int64
	conflicts int64
	errors    int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	sim := simConfig{
		apiBaseURL: getEnv("SIM_API_URL", "http://127.0.0.1:"+cfg.HTTPPort),
		duration:   getDuration("SIM_DURATION", 30*time.Second),
		workers:    getInt("SIM_WORKERS", 16),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	doctors, err := loadIDs(pool, `SELECT id FROM doctors LIMIT 20`)
	if err != nil || len(doctors) == 0 {
		log.Fatalf("load doctors (run cmd/seed first): %v", err)
	}
	patients, err := loadIDs(pool, `SELECT id FROM patients LIMIT 500`)
	if err != nil || len(patients) == 0 {
		log.Fatalf("load patients (run cmd/seed first): %v", err)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	log.Printf("simulating %d workers for %s against %s", sim.workers, sim.duration, sim.apiBaseURL)

	var m metrics
	deadline := time.Now().Add(sim.duration)
	// A narrow date range so workers collide on the same slots.
	dates := upcomingWeekdays(3)

	var wg sync.WaitGroup
	for i := 0; i < sim.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}
			for time.Now().Before(deadline) {
				runBookingAttempt(client, sim.apiBaseURL, verifier, doctors, patients, dates, &m)
			}
		}()
	}
	wg.Wait()

	log.Printf("done: total=%d booked=%d conflicts=%d errors=%d",
		atomic.LoadInt64(&m.total), atomic.LoadInt64(&m.booked),
		atomic.LoadInt64(&m.conflicts), atomic.LoadInt64(&m.errors))

	if err := verifyNoDoubleBookings(pool); err != nil {
		log.Fatalf("INVARIANT VIOLATED: %v", err)
	}
	log.Println("invariant holds: no doctor/date/slot has more than one Scheduled appointment")
}

func runBookingAttempt(client *http.Client, baseURL string, verifier *auth.Verifier, doctors, patients []uuid.UUID, dates []string, m *metrics) {
	doctorID := doctors[rand.Intn(len(doctors))]
	patientID := patients[rand.Intn(len(patients))]
	date := dates[rand.Intn(len(dates))]

	token, err := verifier.Sign(patientID, auth.RolePatient)
	if err != nil {
		atomic.AddInt64(&m.errors, 1)
		return
	}

	slots, err := fetchAvailability(client, baseURL, token, doctorID, date)
	if err != nil || len(slots) == 0 {
		return
	}

	slot := slots[rand.Intn(len(slots))]
	body, _ := json.Marshal(map[string]string{
		"doctor_id": doctorID.String(),
		"date":      date,
		"time_slot": slot,
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&m.errors, 1)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&m.errors, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddInt64(&m.total, 1)
	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&m.booked, 1)
	case http.StatusConflict:
		atomic.AddInt64(&m.conflicts, 1)
	default:
		atomic.AddInt64(&m.errors, 1)
	}
}

func fetchAvailability(client *http.Client, baseURL, token string, doctorID uuid.UUID, date string) ([]string, error) {
	url := fmt.Sprintf("%s/api/doctors/%s/availability?date=%s", baseURL, doctorID, date)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("availability returned %d", resp.StatusCode)
	}

	var payload struct {
		Slots []string `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Slots, nil
}

func verifyNoDoubleBookings(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var offenders int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT doctor_id, appointment_date, time_slot
			FROM appointments
			WHERE status = 'Scheduled'
			GROUP BY doctor_id, appointment_date, time_slot
			HAVING count(*) > 1
		) dup
	`).Scan(&offenders)
	if err != nil {
		return err
	}
	if offenders > 0 {
		return fmt.Errorf("%d doctor/date/slot tuples hold multiple Scheduled appointments", offenders)
	}
	return nil
}

func upcomingWeekdays(n int) []string {
	var out []string
	day := time.Now().AddDate(0, 0, 1)
	for len(out) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, day.Format("2006-01-02"))
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func loadIDs(pool *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
