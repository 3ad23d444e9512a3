package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
	repo *Repository
}

// EntryCount returns the number of direct entries in the tree.
func (t *Tree) EntryCount() uint64 {
	return t.tree.EntryCount()
}

// EntryByIndex returns the tree entry at the given index, or nil.
func (t *Tree) EntryByIndex(i uint64) *TreeEntry {
	entry := t.tree.EntryByIndex(i)
	if entry == nil {
		return nil
	}

	return &TreeEntry{entry: entry}
}

// Free releases the tree resources.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// TreeEntry wraps a libgit2 tree entry.
type TreeEntry struct {
	entry *git2go.TreeEntry
}

// Name returns the entry name.
func (e *TreeEntry) Name() string {
	return e.entry.Name
}

// Hash returns the entry object hash.
func (e *TreeEntry) Hash() Hash {
	return HashFromOid(e.entry.Id)
}

// IsBlob returns true if the entry is a blob (regular file or symlink).
func (e *TreeEntry) IsBlob() bool {
	return e.entry.Type == git2go.ObjectBlob
}

// IsTree returns true if the entry is a subdirectory.
func (e *TreeEntry) IsTree() bool {
	return e.entry.Type == git2go.ObjectTree
}

// WalkBlobs calls cb for every blob reachable from the tree, depth first, in
// tree order. Paths are slash-separated and relative to the tree. Submodule
// entries are skipped. A subtree that cannot be resolved is an error.
func (t *Tree) WalkBlobs(cb func(path string, hash Hash) error) error {
	return walkTree(t, "", cb)
}

func walkTree(tree *Tree, prefix string, cb func(path string, hash Hash) error) error {
	count := tree.EntryCount()

	for i := range count {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		path := entry.Name()
		if prefix != "" {
			path = prefix + "/" + path
		}

		switch {
		case entry.IsBlob():
			err := cb(path, entry.Hash())
			if err != nil {
				return err
			}
		case entry.IsTree():
			err := walkSubtree(tree.repo, entry.Hash(), path, cb)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func walkSubtree(repo *Repository, hash Hash, path string, cb func(path string, hash Hash) error) error {
	subtree, err := repo.LookupTree(hash)
	if err != nil {
		return fmt.Errorf("walk %s: %w", path, err)
	}
	defer subtree.Free()

	return walkTree(subtree, path, cb)
}
