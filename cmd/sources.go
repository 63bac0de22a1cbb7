package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/airframesio/data-comparer/cmd/formatters"
	"github.com/airframesio/data-comparer/cmd/loaders"
)

// newLoader builds the loader for a validated source
func newLoader(src SourceConfig, logger *slog.Logger) (loaders.Loader, error) {
	switch src.Type {
	case SourceTypeFile:
		file, err := src.fileOptions()
		if err != nil {
			return nil, err
		}
		file.Path = src.Path
		return loaders.NewFileLoader(file, logger), nil

	case SourceTypeS3:
		file, err := src.fileOptions()
		if err != nil {
			return nil, err
		}
		bucket, key := src.S3.Bucket, src.Path
		if strings.HasPrefix(src.Path, "s3://") {
			if bucket, key, err = loaders.ParseS3URI(src.Path); err != nil {
				return nil, err
			}
		}
		loader, err := loaders.NewS3Loader(loaders.S3Options{
			Endpoint:  src.S3.Endpoint,
			Region:    src.S3.Region,
			AccessKey: src.S3.AccessKey,
			SecretKey: src.S3.SecretKey,
			Bucket:    bucket,
			Key:       key,
			File:      file,
		}, logger)
		if err != nil {
			return nil, err
		}
		return loader, nil

	case SourceTypeSQL:
		driver, _, err := loaders.ParseConnString(src.ConnString)
		if err != nil {
			return nil, err
		}
		return newSQLLoader(src.sqlOptions(src.ConnString, driver), logger)

	case SourceTypeSQLServer:
		conn := loaders.SQLServerDSN(src.Host, src.Port, src.Database, src.User, src.Password)
		return newSQLLoader(src.sqlOptions(conn, loaders.DriverSQLServer), logger)

	default:
		return nil, fmt.Errorf("%w: '%s'", ErrSourceTypeInvalid, src.Type)
	}
}

func newSQLLoader(opts loaders.SQLOptions, logger *slog.Logger) (loaders.Loader, error) {
	loader, err := loaders.NewSQLLoader(opts, logger)
	if err != nil {
		return nil, err
	}
	return loader, nil
}

func (s *SourceConfig) fileOptions() (loaders.FileOptions, error) {
	delimiter, err := formatters.ParseDelimiter(s.Delimiter)
	if err != nil {
		return loaders.FileOptions{}, err
	}
	return loaders.FileOptions{
		Format:      s.Format,
		Compression: s.Compression,
		Delimiter:   delimiter,
		NullValues:  s.NullValues,
		AsText:      s.AsText,
	}, nil
}

func (s *SourceConfig) sqlOptions(conn, driver string) loaders.SQLOptions {
	query := s.Query
	if query == "" {
		query = loaders.TableQuery(driver, s.Table)
	}
	return loaders.SQLOptions{
		ConnString: conn,
		Query:      query,
		AsText:     s.AsText,
		MaxRetries: s.MaxRetries,
		RetryDelay: time.Duration(s.RetryDelay) * time.Second,
		Timeout:    time.Duration(s.QueryTimeout) * time.Second,
	}
}
