package fetch

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP source.
type FTPOptions struct {
	Addr     string // host:port
	User     string
	Password string
	Timeout  time.Duration
}

// FTPSource downloads export bundles from an FTP drop folder, the
// exchange format some agencies still deliver client exports through.
type FTPSource struct {
	opts FTPOptions
}

// NewFTPSource creates an FTP source for the given server.
func NewFTPSource(opts FTPOptions) *FTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPSource{opts: opts}
}

// FetchDir downloads every regular file in the remote directory into
// destDir and returns the local paths. Subdirectories are skipped.
func (s *FTPSource) FetchDir(ctx context.Context, remoteDir, destDir string) ([]string, error) {
	conn, err := ftp.Dial(s.opts.Addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.opts.Timeout),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: dial %s", s.opts.Addr)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(s.opts.User, s.opts.Password); err != nil {
		return nil, eris.Wrap(err, "ftp: login")
	}

	entries, err := conn.List(remoteDir)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: list %s", remoteDir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		local, err := s.retrieve(conn, path.Join(remoteDir, entry.Name), destDir)
		if err != nil {
			return nil, err
		}
		zap.L().Info("fetched export file",
			zap.String("name", entry.Name),
			zap.Uint64("size", entry.Size))
		paths = append(paths, local)
	}
	return paths, nil
}

func (s *FTPSource) retrieve(conn *ftp.ServerConn, remotePath, destDir string) (string, error) {
	resp, err := conn.Retr(remotePath)
	if err != nil {
		return "", eris.Wrapf(err, "ftp: retrieve %s", remotePath)
	}
	defer resp.Close() //nolint:errcheck

	local := filepath.Join(destDir, path.Base(remotePath))
	file, err := os.Create(local)
	if err != nil {
		return "", eris.Wrap(err, "ftp: create file")
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, resp); err != nil {
		return "", eris.Wrapf(err, "ftp: write %s", local)
	}
	return local, nil
}
