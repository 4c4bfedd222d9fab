package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/appointment-booking/internal/db"
	"github.com/medilink/appointment-booking/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
}

// Plausible clinic shapes: morning only, afternoon only, or split day.
var windowShapes = [][]schedule.TimeWindow{
	{{Start: "09:00", End: "13:00"}},
	{{Start: "14:00", End: "18:00"}},
	{{Start: "09:00", End: "12:00"}, {Start: "15:00", End: "18:00"}},
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	for i := 0; i < count; i++ {
		doctorID := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, consultation_fee, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, doctorID,
			"Dr. "+gofakeit.Name(),
			specialties[rand.Intn(len(specialties))],
			float64(rand.Intn(150)),
		)
		if err != nil {
			return err
		}

		if err := seedAvailability(ctx, pool, doctorID); err != nil {
			return err
		}
	}
	return nil
}

func seedAvailability(ctx context.Context, pool *pgxpool.Pool, doctorID uuid.UUID) error {
	// Monday through Friday, skipping a random weekday or two.
	for day := time.Monday; day <= time.Friday; day++ {
		if rand.Intn(5) == 0 {
			continue
		}
		windows := windowShapes[rand.Intn(len(windowShapes))]
		for ord, win := range windows {
			_, err := pool.Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, day, ord, start_time, end_time)
				VALUES ($1, $2, $3, $4, $5)
			`, doctorID, int(day), ord, win.Start, win.End)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return err
		}
	}
	return nil
}
