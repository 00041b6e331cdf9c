/*
Copyright (C) 2026  BAR Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package storage

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/launix-de/bar/barerr"
)

// runTemplate substitutes %file/%directory/%number into template and
// runs it as a shell command, per spec §4.7's pre-/post-processing
// contract. An empty template is a no-op.
func runTemplate(template, file, directory string, number int) error {
	if strings.TrimSpace(template) == "" {
		return nil
	}
	cmdline := strings.NewReplacer(
		"%file", file,
		"%directory", directory,
		"%number", strconv.Itoa(number),
	).Replace(template)

	cmd := exec.Command("sh", "-c", cmdline)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return barerr.Wrap(barerr.KindIO, "preProcess/postProcess", file, fmt.Errorf("%w: %s", err, out))
	}
	return nil
}
