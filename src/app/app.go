package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cormorantdb/cormorant/src"
	"github.com/cormorantdb/cormorant/src/pkg/utils"
	"github.com/cormorantdb/cormorant/src/recovery"
	"github.com/cormorantdb/cormorant/src/storage/file"
	"github.com/cormorantdb/cormorant/src/txns"
)

// Entrypoint wires the storage substrate together from environment
// configuration: filesystem, block file manager and write-ahead log.
type Entrypoint struct {
	Env envVars

	fm  *file.Manager
	lm  *recovery.LogManager
	log src.Logger
}

func (e *Entrypoint) Init(_ context.Context) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	e.Env = env

	if e.Env.Environment == EnvDev {
		e.log = utils.Must(zap.NewDevelopment()).Sugar()
	} else {
		e.log = utils.Must(zap.NewProduction()).Sugar()
	}

	fm, err := file.NewManager(afero.NewOsFs(), e.Env.DataDir, e.Env.BlockSize, e.log)
	if err != nil {
		return err
	}
	e.fm = fm

	lm, err := recovery.NewLogManager(fm, e.Env.LogFile)
	if err != nil {
		return err
	}
	e.lm = lm

	e.log.Infof(
		"opened database at %s (new: %t, block size: %d)",
		e.Env.DataDir,
		fm.IsNew(),
		fm.BlockSize(),
	)

	return nil
}

// Recover rolls back every transaction the previous run left
// unfinished. It must be called after Init and before any new
// transaction is started.
func (e *Entrypoint) Recover(_ context.Context) error {
	tx, err := txns.New(e.fm, e.lm, e.log)
	if err != nil {
		return err
	}

	return tx.Recover()
}

func (e *Entrypoint) FileManager() *file.Manager {
	return e.fm
}

func (e *Entrypoint) LogManager() *recovery.LogManager {
	return e.lm
}

func (e *Entrypoint) Log() src.Logger {
	return e.log
}

func (e *Entrypoint) Close() (err error) {
	if e.fm != nil {
		err = e.fm.Close()
	}

	if e.log != nil {
		if err != nil {
			e.log.Errorf("failed to close file manager: %v", err)
		}

		logErr := e.log.Sync()
		if logErr != nil && err != nil {
			err = fmt.Errorf("%w, %w", err, logErr)
		} else if logErr != nil {
			err = logErr
		}
	}

	return
}
