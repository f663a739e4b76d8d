package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/internal/cli/prompt"
	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/reference"
)

var (
	forgetScope  string
	forgetRecord string
	forgetForce  bool
)

var forgetCmd = &cobra.Command{
	Use:   "forget [object-key]",
	Short: "Delete one object, or one record and its object, right away",
	Long: `Delete a single object without waiting for the next pass.

With an object key, the object is deleted from the object store unless a
record of its scope still references it. With --scope and --record, the
reference record is removed first and then the object it pointed at, unless
another record still references it. An object that is already gone is not
an error.

Examples:
  # Delete one object
  blobsweep forget place_images/u1/a.jpg

  # Drop a record and its image
  blobsweep forget --scope u1 --record 42

  # Skip the confirmation prompt
  blobsweep forget place_images/u1/a.jpg --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runForget,
}

func init() {
	forgetCmd.Flags().StringVar(&forgetScope, "scope", "", "Scope of the record to remove")
	forgetCmd.Flags().StringVar(&forgetRecord, "record", "", "ID of the record to remove")
	forgetCmd.Flags().BoolVarP(&forgetForce, "force", "f", false, "Do not ask for confirmation")
}

func runForget(cmd *cobra.Command, args []string) error {
	byRecord := forgetScope != "" || forgetRecord != ""
	switch {
	case byRecord && len(args) > 0:
		return errors.New("pass either an object key or --scope and --record, not both")
	case byRecord && (forgetScope == "" || forgetRecord == ""):
		return errors.New("--scope and --record must be set together")
	case !byRecord && (len(args) == 0 || args[0] == ""):
		return errors.New("an object key or --scope and --record is required")
	}

	out := cmd.OutOrStdout()
	label := fmt.Sprintf("Delete object %s", firstArg(args))
	if byRecord {
		label = fmt.Sprintf("Delete record %s/%s and its object", forgetScope, forgetRecord)
	}
	ok, err := prompt.ConfirmWithForce(label, forgetForce)
	if err != nil {
		if prompt.IsAborted(err) {
			return errors.New("aborted")
		}
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(out, "Nothing deleted.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if !byRecord {
		if err := gc.Forget(ctx, st.refs, st.objects, cfg.GC.Namespace, args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Deleted %s\n", args[0])
		return nil
	}

	key, err := gc.ForgetRecord(ctx, st.refs, st.objects, cfg.GC.Namespace, reference.Scope(forgetScope), forgetRecord)
	switch {
	case key == "" && err != nil:
		return err
	case errors.Is(err, gc.ErrStillReferenced):
		_, _ = fmt.Fprintf(out, "Removed record %s/%s; %s is still referenced and was kept\n", forgetScope, forgetRecord, key)
	case err != nil:
		// The record is gone; the object will be picked up by the next pass.
		_, _ = fmt.Fprintf(out, "Removed record %s/%s; object %s not deleted: %v\n", forgetScope, forgetRecord, key, err)
		return nil
	case key == "":
		_, _ = fmt.Fprintf(out, "Removed record %s/%s (no object)\n", forgetScope, forgetRecord)
	default:
		_, _ = fmt.Fprintf(out, "Removed record %s/%s and deleted %s\n", forgetScope, forgetRecord, key)
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
