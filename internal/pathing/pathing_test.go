package pathing_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertwitch/filebox/internal/canonical"
	"github.com/desertwitch/filebox/internal/pathing"
	"github.com/desertwitch/filebox/internal/schema"
	"github.com/desertwitch/filebox/internal/syscalls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTree creates the following tree and returns the canonical base:
//
//	base/outside.txt
//	base/data-other/secret
//	base/data/                     (the root)
//	base/data/subdir/file.txt
//	base/data/link-inside   -> subdir/file.txt
//	base/data/link-outside  -> ../outside.txt
//	base/data/link-sibling  -> <base>/data-other/secret
//	base/data/link-root     -> .
func newTree(t *testing.T) string {
	t.Helper()

	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	root := filepath.Join(base, "data")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "subdir"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "data-other"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "outside.txt"), []byte("outside"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(base, "data-other", "secret"), []byte("secret"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "subdir", "file.txt"), []byte("inside"), 0o600))
	require.NoError(t, os.Symlink("subdir/file.txt", filepath.Join(root, "link-inside")))
	require.NoError(t, os.Symlink("../outside.txt", filepath.Join(root, "link-outside")))
	require.NoError(t, os.Symlink(filepath.Join(base, "data-other", "secret"), filepath.Join(root, "link-sibling")))
	require.NoError(t, os.Symlink(".", filepath.Join(root, "link-root")))

	return base
}

func newGuard(t *testing.T, root string, opts pathing.Options) *pathing.Guard {
	t.Helper()

	canon := canonical.NewCanonicalizer(&syscalls.OS{}, &syscalls.Unix{}, canonical.Limits{})

	guard, err := pathing.NewGuard(root, canon, &syscalls.OS{}, opts)
	require.NoError(t, err)

	return guard
}

// TestNewGuard tests the construction of a [pathing.Guard].
func TestNewGuard(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	canon := canonical.NewCanonicalizer(&syscalls.OS{}, &syscalls.Unix{}, canonical.Limits{})

	t.Run("Success_TrailingSlashRoot", func(t *testing.T) {
		t.Parallel()

		guard, err := pathing.NewGuard(filepath.Join(base, "data")+"/", canon, &syscalls.OS{}, pathing.Options{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "data"), guard.Root())
	})

	t.Run("Success_SymlinkedRoot", func(t *testing.T) {
		t.Parallel()

		guard, err := pathing.NewGuard(filepath.Join(base, "data", "link-root"), canon, &syscalls.OS{}, pathing.Options{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "data"), guard.Root(), "the root should be canonicalized")
	})

	t.Run("Fail_EmptyRoot", func(t *testing.T) {
		t.Parallel()

		_, err := pathing.NewGuard("", canon, &syscalls.OS{}, pathing.Options{})
		require.ErrorIs(t, err, pathing.ErrNoRoot)
	})

	t.Run("Fail_RelativeRoot", func(t *testing.T) {
		t.Parallel()

		_, err := pathing.NewGuard("data", canon, &syscalls.OS{}, pathing.Options{})
		require.ErrorIs(t, err, pathing.ErrRootIsRelative)
	})

	t.Run("Fail_MissingRoot", func(t *testing.T) {
		t.Parallel()

		_, err := pathing.NewGuard(filepath.Join(base, "nope"), canon, &syscalls.OS{}, pathing.Options{})
		require.ErrorIs(t, err, schema.ErrNotFound)
	})

	t.Run("Fail_FileRoot", func(t *testing.T) {
		t.Parallel()

		_, err := pathing.NewGuard(filepath.Join(base, "outside.txt"), canon, &syscalls.OS{}, pathing.Options{})
		require.ErrorIs(t, err, pathing.ErrRootNotDir)
	})
}

// TestResolve_Contained tests resolutions that stay inside of the root.
func TestResolve_Contained(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	root := filepath.Join(base, "data")
	guard := newGuard(t, root, pathing.Options{})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"Success_Empty", "", root},
		{"Success_Dot", ".", root},
		{"Success_File", "subdir/file.txt", filepath.Join(root, "subdir", "file.txt")},
		{"Success_EquivalentPath", "subdir/../subdir/file.txt", filepath.Join(root, "subdir", "file.txt")},
		{"Success_ParentBackIntoRoot", "subdir/../../data/subdir", filepath.Join(root, "subdir")},
		{"Success_SymlinkInside", "link-inside", filepath.Join(root, "subdir", "file.txt")},
		{"Success_SymlinkToRoot", "link-root/link-root/subdir", filepath.Join(root, "subdir")},
		{"Success_TrailingSlash", "subdir/", filepath.Join(root, "subdir")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := guard.Resolve(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, pathing.IsContained(root, got), "result must be contained")
		})
	}
}

// TestResolve_Violations tests resolutions that must be rejected as
// containment violations.
func TestResolve_Violations(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{})

	tests := []struct {
		name string
		path string
	}{
		{"Fail_Parent", ".."},
		{"Fail_TraversalToFile", "../outside.txt"},
		{"Fail_DeepTraversal", strings.Repeat("../", 64)},
		{"Fail_TraversalToSystemFile", strings.Repeat("../", 64) + "etc/passwd"},
		{"Fail_TraversalThroughSubdir", "subdir/../../outside.txt"},
		{"Fail_SiblingWithSharedPrefix", "../data-other/secret"},
		{"Fail_SymlinkOutside", "link-outside"},
		{"Fail_SymlinkToSibling", "link-sibling"},
		{"Fail_AbsolutePath", "/etc/passwd"},
		{"Fail_AbsoluteRootPath", filepath.Join(base, "data", "subdir", "file.txt")},
		{"Fail_NulByte", "subdir/\x00file.txt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := guard.Resolve(tc.path)
			require.Error(t, err)
			require.ErrorIs(t, err, schema.ErrContainment)
			assert.Equal(t, schema.KindContainmentViolation, schema.KindOf(err))
			assert.Empty(t, got)
		})
	}
}

// TestResolve_HiddenViolation tests that by default a containment violation
// cannot be told apart from a missing file by its message or errno.
func TestResolve_HiddenViolation(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{})

	_, outsideErr := guard.Resolve("../outside.txt")
	require.ErrorIs(t, outsideErr, fs.ErrNotExist)
	assert.Equal(t, "cannot open ../outside.txt: no such file or directory", outsideErr.Error())

	_, missingErr := guard.Resolve("missing.txt")
	require.ErrorIs(t, missingErr, fs.ErrNotExist)
	require.ErrorIs(t, missingErr, schema.ErrNotFound)
	require.NotErrorIs(t, missingErr, schema.ErrContainment)
	assert.Equal(t, "cannot open missing.txt: no such file or directory", missingErr.Error())
}

// TestResolve_RevealedViolation tests [pathing.Options.RevealContainment].
func TestResolve_RevealedViolation(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{RevealContainment: true})

	_, err := guard.Resolve("link-outside")
	require.ErrorIs(t, err, schema.ErrContainment)
	require.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "cannot open link-outside: permission denied", err.Error())
}

// TestResolve_ResolutionErrors tests that resolution failures keep their
// kind and are not reported as containment violations.
func TestResolve_ResolutionErrors(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{})

	tests := []struct {
		name string
		path string
		want error
	}{
		{"Fail_NotFound", "subdir/missing.txt", schema.ErrNotFound},
		{"Fail_NotADirectory", "subdir/file.txt/more", schema.ErrNotADirectory},
		{"Fail_PathTooLong", strings.Repeat("a/", canonical.DefaultMaxPathLen), schema.ErrPathTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := guard.Resolve(tc.path)
			require.ErrorIs(t, err, tc.want)
			require.NotErrorIs(t, err, schema.ErrContainment)
			assert.True(t, strings.HasPrefix(err.Error(), "cannot open "+tc.path+": "))
		})
	}
}

// TestResolve_SymlinkLoop tests that cyclic links fail as TooManySymlinks.
func TestResolve_SymlinkLoop(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	root := filepath.Join(base, "data")
	require.NoError(t, os.Symlink("loop-b", filepath.Join(root, "loop-a")))
	require.NoError(t, os.Symlink("loop-a", filepath.Join(root, "loop-b")))

	guard := newGuard(t, root, pathing.Options{})

	_, err := guard.Resolve("loop-a")
	require.ErrorIs(t, err, schema.ErrTooManySymlinks)
	assert.Equal(t, "cannot open loop-a: too many levels of symbolic links", err.Error())
}

// TestResolve_Idempotent tests that resolving the same path repeatedly, also
// concurrently, yields identical results.
func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{})

	want, err := guard.Resolve("link-root/subdir/../link-inside")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 32)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = guard.Resolve("link-root/subdir/../link-inside")
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

// TestResolve_IndependentRoots tests that guards with different roots do not
// influence each other.
func TestResolve_IndependentRoots(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	dataGuard := newGuard(t, filepath.Join(base, "data"), pathing.Options{})
	otherGuard := newGuard(t, filepath.Join(base, "data-other"), pathing.Options{})

	_, err := dataGuard.Resolve("secret")
	require.ErrorIs(t, err, schema.ErrNotFound)

	got, err := otherGuard.Resolve("secret")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "data-other", "secret"), got)

	_, err = otherGuard.Resolve("../data/subdir")
	require.ErrorIs(t, err, schema.ErrContainment)
}

// TestResolveParent tests [pathing.Guard.ResolveParent].
func TestResolveParent(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	root := filepath.Join(base, "data")
	guard := newGuard(t, root, pathing.Options{})

	t.Run("Success_TopLevel", func(t *testing.T) {
		t.Parallel()

		dir, name, err := guard.ResolveParent("new.txt")
		require.NoError(t, err)
		assert.Equal(t, root, dir)
		assert.Equal(t, "new.txt", name)
	})

	t.Run("Success_Nested", func(t *testing.T) {
		t.Parallel()

		dir, name, err := guard.ResolveParent("link-root/subdir/newdir/")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "subdir"), dir)
		assert.Equal(t, "newdir", name)
	})

	t.Run("Fail_ParentOutside", func(t *testing.T) {
		t.Parallel()

		_, _, err := guard.ResolveParent("../new.txt")
		require.ErrorIs(t, err, schema.ErrContainment)
		assert.Equal(t, "cannot open ../new.txt: no such file or directory", err.Error())
	})

	t.Run("Fail_ParentMissing", func(t *testing.T) {
		t.Parallel()

		_, _, err := guard.ResolveParent("missing/new.txt")
		require.ErrorIs(t, err, schema.ErrNotFound)
	})

	t.Run("Fail_ParentIsFile", func(t *testing.T) {
		t.Parallel()

		_, _, err := guard.ResolveParent("subdir/file.txt/new.txt")
		require.ErrorIs(t, err, schema.ErrNotADirectory)
	})

	t.Run("Fail_InvalidNames", func(t *testing.T) {
		t.Parallel()

		for _, p := range []string{"", ".", "..", "subdir/..", "/"} {
			_, _, err := guard.ResolveParent(p)
			require.Error(t, err, "expected error for %q", p)
		}
	})
}

// TestRelative tests the root-relative display forms.
func TestRelative(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	root := filepath.Join(base, "data")
	guard := newGuard(t, root, pathing.Options{})

	assert.Equal(t, "/", guard.Relative(root))
	assert.Equal(t, "/subdir/file.txt", guard.Relative(filepath.Join(root, "subdir", "file.txt")))
	assert.Empty(t, guard.Relative(filepath.Join(base, "data-other")))

	assert.Equal(t, ".", guard.RootRelative(root))
	assert.Equal(t, "subdir/file.txt", guard.RootRelative(filepath.Join(root, "subdir", "file.txt")))
}

// TestOpenRoot tests that the root can be opened for descriptor-relative
// operations.
func TestOpenRoot(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{})

	root, err := guard.OpenRoot()
	require.NoError(t, err)
	defer root.Close()

	_, err = root.Stat("subdir/file.txt")
	require.NoError(t, err)

	_, err = root.Stat("link-outside")
	require.Error(t, err, "os.Root must not follow links out of the root")
}

type fakeObserver struct {
	sync.Mutex
	kinds     []schema.Kind
	successes int
}

func (o *fakeObserver) ObserveResolve(kind schema.Kind, success bool, _ time.Duration) {
	o.Lock()
	defer o.Unlock()

	o.kinds = append(o.kinds, kind)
	if success {
		o.successes++
	}
}

// TestResolve_Observer tests that every resolution is reported.
func TestResolve_Observer(t *testing.T) {
	t.Parallel()

	base := newTree(t)
	observer := &fakeObserver{}
	guard := newGuard(t, filepath.Join(base, "data"), pathing.Options{Observer: observer})

	_, _ = guard.Resolve("subdir")
	_, _ = guard.Resolve("..")
	_, _ = guard.Resolve("missing")

	assert.Equal(t, []schema.Kind{
		schema.KindUnknown,
		schema.KindContainmentViolation,
		schema.KindNotFound,
	}, observer.kinds)
	assert.Equal(t, 1, observer.successes)
}
