package main

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// testImage builds a minimal FAT32 image with 512 byte sectors, 32 reserved sectors,
// two FATs of one sector and a valid FSInfo sector.
func testImage() []byte {
	image := make([]byte, 40*512)

	boot := image[:512]
	copy(boot, []byte{0xEB, 0x58, 0x90})
	copy(boot[3:], "MSWIN4.1")
	binary.LittleEndian.PutUint16(boot[11:], 512)
	boot[13] = 1
	binary.LittleEndian.PutUint16(boot[14:], 32)
	boot[16] = 2
	boot[21] = 0xF8
	binary.LittleEndian.PutUint32(boot[32:], 40)
	binary.LittleEndian.PutUint32(boot[36:], 1)
	binary.LittleEndian.PutUint32(boot[44:], 2)
	binary.LittleEndian.PutUint16(boot[48:], 1)
	copy(boot[71:], "CLITEST    ")
	copy(boot[82:], "FAT32   ")
	boot[510] = 0x55
	boot[511] = 0xAA

	info := image[512:1024]
	binary.LittleEndian.PutUint32(info[0:], 0x41615252)
	binary.LittleEndian.PutUint32(info[484:], 0x61417272)
	binary.LittleEndian.PutUint32(info[488:], 3)
	binary.LittleEndian.PutUint32(info[492:], 4)
	binary.LittleEndian.PutUint32(info[508:], 0xAA550000)

	for _, fat := range []int{32 * 512, 33 * 512} {
		binary.LittleEndian.PutUint32(image[fat+2*4:], 0x0FFFFFFF)
		binary.LittleEndian.PutUint32(image[fat+3*4:], 5)
	}

	return image
}

func TestRootCommand(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "fat32.img", testImage(), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		contains []string
	}{
		{
			name: "info only",
			args: []string{"fat32.img"},
			contains: []string{
				"Opened volume 'CLITEST' with type FAT32",
				"Sector size:         512",
				"Root cluster:        2",
				"Free clusters:       3",
				"Next free cluster:   4",
			},
		},
		{
			name: "entries",
			args: []string{"fat32.img", "--entry", "2", "--entry", "3"},
			contains: []string{
				"FAT[0][2] = 0x0fffffff (end of chain)",
				"FAT[0][3] = 0x00000005 (next 5)",
			},
		},
		{
			name: "entries from the mirror",
			args: []string{"fat32.img", "--entry", "3", "--mirror", "1"},
			contains: []string{
				"FAT[1][3] = 0x00000005 (next 5)",
			},
		},
		{
			name:    "entry out of range",
			args:    []string{"fat32.img", "--entry", "128"},
			wantErr: true,
		},
		{
			name:    "missing image",
			args:    []string{"missing.img"},
			wantErr: true,
		},
		{
			name:    "no image",
			args:    []string{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cmd := newRootCommand(fsys)
			cmd.SetOut(out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}

			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output does not contain %q:\n%v", want, out.String())
				}
			}
		})
	}
}
