package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/internal/cache"
)

// Singleton connection shared by the server and the workers process.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createGoodsTable(db)
	if err != nil {
		return nil, err
	}
	err = createUserTable(db)
	if err != nil {
		return nil, err
	}
	err = createOrderTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createGoodsTable creates a PostgreSQL table for the Goods struct
func createGoodsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS goods (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			img TEXT,
			detail TEXT,
			price NUMERIC(12,2) NOT NULL,
			seckill_price NUMERIC(12,2) NOT NULL,
			stock_count INT NOT NULL CHECK (stock_count >= 0),
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			status INT NOT NULL DEFAULT 0,
			version INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createOrderTable creates a PostgreSQL table for the Order struct
func createOrderTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			order_no BIGINT NOT NULL UNIQUE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			goods_id BIGINT NOT NULL REFERENCES goods(id),
			goods_name TEXT NOT NULL,
			goods_img TEXT,
			goods_price NUMERIC(12,2) NOT NULL,
			goods_count INT NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			channel INT NOT NULL DEFAULT 1,
			status INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			pay_time TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			deleted INT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		log.Printf("Error creating orders table: %v", err)
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_orders_user_goods ON orders (user_id, goods_id)`)
	log.Println(err)
	return err
}

func createUserTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			phone TEXT UNIQUE,
			status INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}
