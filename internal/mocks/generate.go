package mocks

//go:generate mockery --name EventLog --srcpkg github.com/aevon-lab/segmentd/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
