// Command tinyfsctl formats and inspects TFS disk images from the shell.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"

	"github.com/sittner/tinyfs"
	"github.com/sittner/tinyfs/devemu"
)

// usageRow is one line of `tinyfsctl usage`'s CSV report.
type usageRow struct {
	TotalBlocks uint   `csv:"total_blocks"`
	UsedBlocks  uint   `csv:"used_blocks"`
	FreeBlocks  uint   `csv:"free_blocks"`
	Model       string `csv:"model"`
}

func main() {
	app := &cli.App{
		Name:  "tinyfsctl",
		Usage: "Format and inspect TFS disk image files",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create or wipe an image",
				Action:    formatImage,
				ArgsUsage: "IMAGE_FILE BLOCK_COUNT",
			},
			{
				Name:      "ls",
				Usage:     "List the contents of a directory",
				Action:    listDir,
				ArgsUsage: "IMAGE_FILE [PATH]",
			},
			{
				Name:      "cat",
				Usage:     "Print a file's contents to stdout",
				Action:    catFile,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name:      "put",
				Usage:     "Copy a host file into the image",
				Action:    putFile,
				ArgsUsage: "IMAGE_FILE HOST_FILE DEST_NAME",
			},
			{
				Name:      "mkdir",
				Usage:     "Create a directory",
				Action:    mkdirCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name:      "rm",
				Usage:     "Remove a file or empty directory",
				Action:    rmCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name:      "mv",
				Usage:     "Rename an item in place",
				Action:    mvCmd,
				ArgsUsage: "IMAGE_FILE FROM TO",
			},
			{
				Name:      "touch",
				Usage:     "Create an empty file if it doesn't already exist",
				Action:    touchCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name:      "usage",
				Usage:     "Report block usage as CSV",
				Action:    usageCmd,
				ArgsUsage: "IMAGE_FILE",
			},
			{
				Name:      "fsck",
				Usage:     "Check an image's consistency",
				Action:    fsckCmd,
				ArgsUsage: "IMAGE_FILE",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openImage(path string) (*tinyfs.Filesystem, *devemu.FileBlockDevice, error) {
	dev, err := devemu.OpenFile(path, "tinyfsctl", "N/A")
	if err != nil {
		return nil, nil, err
	}
	fs, err := tinyfs.Mount(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return fs, dev, nil
}

func formatImage(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: tinyfsctl format IMAGE_FILE BLOCK_COUNT", 1)
	}
	path := c.Args().Get(0)
	var blkCount uint64
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &blkCount); err != nil {
		return cli.Exit("invalid block count", 1)
	}

	dev, err := devemu.CreateFile(path, "tinyfsctl", "N/A", tinyfs.BlockID(blkCount))
	if err != nil {
		return err
	}
	defer dev.Close()

	_, err = tinyfs.Format(dev, nil)
	return err
}

func listDir(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: tinyfsctl ls IMAGE_FILE [PATH]", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()

	if c.Args().Len() > 1 {
		if err := changeDirPath(fs, c.Args().Get(1)); err != nil {
			return err
		}
	}

	items, err := fs.List()
	if err != nil {
		return err
	}
	for _, item := range items {
		kind := "FILE"
		if item.Type == tinyfs.ItemDir {
			kind = "DIR"
		}
		fmt.Printf("%-4s %10d  %s\n", kind, item.Size, item.NameString())
	}
	return nil
}

func catFile(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: tinyfsctl cat IMAGE_FILE PATH", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()

	name := c.Args().Get(1)
	item, found, err := statByName(fs, name)
	if err != nil {
		return err
	}
	if !found {
		return cli.Exit("no such file", 1)
	}

	buf := make([]byte, item.Size)
	n, err := fs.ReadFile(name, buf)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf[:n])
	return err
}

func putFile(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return cli.Exit("usage: tinyfsctl put IMAGE_FILE HOST_FILE DEST_NAME", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()

	data, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	return fs.OverwriteFile(c.Args().Get(2), data)
}

func mkdirCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: tinyfsctl mkdir IMAGE_FILE PATH", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()
	return fs.CreateDir(c.Args().Get(1))
}

func rmCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: tinyfsctl rm IMAGE_FILE PATH", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()
	return fs.Delete(c.Args().Get(1), nil)
}

func mvCmd(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return cli.Exit("usage: tinyfsctl mv IMAGE_FILE FROM TO", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()
	return fs.Rename(c.Args().Get(1), c.Args().Get(2))
}

func touchCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: tinyfsctl touch IMAGE_FILE PATH", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()

	h := tinyfs.NewHandles(fs)
	return h.Touch(c.Args().Get(1))
}

func usageCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: tinyfsctl usage IMAGE_FILE", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()

	used, err := fs.UsedCount()
	if err != nil {
		return err
	}
	info := fs.Info()
	total := uint(info.BlkCount)

	rows := []usageRow{{
		TotalBlocks: total,
		UsedBlocks:  used,
		FreeBlocks:  total - used,
		Model:       info.Model,
	}}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func fsckCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: tinyfsctl fsck IMAGE_FILE", 1)
	}
	fs, dev, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := fs.Check(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.Exit("image is inconsistent", 2)
	}
	fmt.Println("OK")
	return nil
}

// changeDirPath treats a flat, single-level argument as a directory name
// relative to the current directory. Nested paths are out of scope for
// the CLI; callers script multiple ls/mkdir invocations for deeper trees.
func changeDirPath(fs *tinyfs.Filesystem, name string) error {
	return fs.ChangeDir(name)
}

func statByName(fs *tinyfs.Filesystem, name string) (tinyfs.DirItem, bool, error) {
	items, err := fs.List()
	if err != nil {
		return tinyfs.DirItem{}, false, err
	}
	for _, item := range items {
		if item.NameString() == name {
			return item, true, nil
		}
	}
	return tinyfs.DirItem{}, false, nil
}
