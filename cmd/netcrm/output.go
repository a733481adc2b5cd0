package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"netcrm/internal"
	"netcrm/internal/util"
)

func printJSON(v any) {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	must(err)
	_, _ = os.Stdout.Write(append(out, '\n'))
}

func printUpload(u internal.UploadRecord) {
	fmt.Printf("upload id=%s file=%s status=%s imported=%d rows=%d took=%.2fs\n",
		u.ID, u.FileName, u.Status, u.ContactsImported, u.TotalRows, u.ProcessingSeconds)
	if u.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", u.ErrorMessage)
	}
}

func printContact(c internal.Contact) {
	fmt.Printf("%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, util.Deref(c.Email), util.Deref(c.Company), c.RelationshipStrength)
}
